package service

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/phpdave11/gofpdf"

	apperrors "busticket/internal/errors"
	"busticket/internal/models"
)

// Ticket renders the e-ticket PDF of a confirmed payment owned by userID.
func (s *BookingService) Ticket(ctx context.Context, id, userID int64) ([]byte, error) {
	payment, err := s.Get(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if payment.Status != models.PaymentStatusConfirmed {
		return nil, apperrors.InvalidRequest("payment %d is %s, no ticket available", id, strings.ToLower(payment.Status))
	}
	return RenderTicket(payment)
}

func RenderTicket(p *models.Payment) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("E-Ticket "+p.Reference, false)
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "BUS E-TICKET")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 12)
	busNumber := "-"
	if p.Bus != nil {
		busNumber = p.Bus.BusNumber
	}
	lines := []string{
		"Reference : " + p.Reference,
		"Booked at : " + p.CreatedAt.Format("2006-01-02 15:04"),
		"Bus       : " + busNumber,
		"From      : " + valueOr(p.StartLocation, "-"),
		"To        : " + valueOr(p.EndLocation, "-"),
		"Passenger : " + p.Card.CardHolderName,
	}
	for _, s := range lines {
		pdf.Cell(0, 7, s)
		pdf.Ln(7)
	}

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 7, "Seats:")
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "", 11)
	for _, seat := range p.Seats {
		pdf.Cell(0, 6, fmt.Sprintf("%-6s %-8s %d", seat.SeatNumber, seat.Type, seat.Price))
		pdf.Ln(6)
	}

	pdf.Ln(4)
	pdf.Cell(0, 6, fmt.Sprintf("Subtotal        : %d", p.Subtotal))
	pdf.Ln(6)
	pdf.Cell(0, 6, fmt.Sprintf("Service fee     : %d", p.ServiceFee))
	pdf.Ln(6)
	pdf.Cell(0, 6, fmt.Sprintf("Convenience fee : %d", p.ConvenienceFee))
	pdf.Ln(6)
	pdf.Cell(0, 6, fmt.Sprintf("GST             : %d", p.GSTAmount))
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, fmt.Sprintf("Total: %d", p.Amount))
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "I", 10)
	pdf.MultiCell(0, 6, "Please show this ticket and a photo ID when boarding.", "", "", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render ticket: %w", err)
	}
	return buf.Bytes(), nil
}

func valueOr(s *string, fallback string) string {
	if s == nil || *s == "" {
		return fallback
	}
	return *s
}
