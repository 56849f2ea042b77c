package validation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	apperrors "busticket/internal/errors"
	"busticket/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Credentials для защищенных endpoints: Bearer токен или Basic Auth
type Credentials struct {
	Token    string
	Username string
	Password string
}

// SmokeValidator - проверка работающего API по основным сценариям бронирования
type SmokeValidator struct {
	baseURL string
	creds   Credentials
	client  *http.Client
}

// NewSmokeValidator создает новый валидатор
func NewSmokeValidator(baseURL string, creds Credentials) *SmokeValidator {
	return &SmokeValidator{
		baseURL: baseURL,
		creds:   creds,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type apiError struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	Field string `json:"field"`
	Seat  string `json:"seat"`
}

var smokeCard = models.CardDetails{
	CardNumber:     "4111111111111111",
	CardHolderName: "Smoke Test",
	ExpiryDate:     "12/30",
	CVV:            "123",
}

// ValidateAll создает автобус, рассчитывает цену, бронирует место и проверяет
// отказы при повторном бронировании и неверной карте.
func (v *SmokeValidator) ValidateAll() error {
	slog.Info("Starting API smoke validation", "base_url", v.baseURL)

	busID, err := v.createBus()
	if err != nil {
		return fmt.Errorf("buses: %w", err)
	}
	if err := v.validateQuote(busID); err != nil {
		return fmt.Errorf("quote: %w", err)
	}
	if err := v.validateBooking(busID); err != nil {
		return fmt.Errorf("payments: %w", err)
	}
	if err := v.validateSeatMap(busID); err != nil {
		return fmt.Errorf("seat map: %w", err)
	}

	slog.Info("All smoke checks passed", "bus_id", busID)
	return nil
}

func (v *SmokeValidator) createBus() (int64, error) {
	window, aisle := models.PositionWindow, models.PositionNonWindow
	req := models.CreateBusRequest{
		BusNumber: "SMOKE-" + uuid.New().String()[:8],
		Amenities: []string{"wifi"},
		Seats: []models.Seat{
			{Type: models.SeatTypeSeater, SeatingPosition: &window, Price: 500, Row: 1, Column: 1},
			{Type: models.SeatTypeSeater, SeatingPosition: &aisle, Price: 500, Row: 1, Column: 2},
		},
	}

	var bus models.Bus
	if err := v.expect(http.MethodPost, "/api/buses", req, true, http.StatusCreated, &bus); err != nil {
		return 0, err
	}
	if bus.ID == 0 || bus.Capacity != 2 {
		return 0, fmt.Errorf("POST /api/buses: unexpected bus %+v", bus)
	}
	return bus.ID, nil
}

func (v *SmokeValidator) validateQuote(busID int64) error {
	var quote models.QuoteResponse
	req := models.QuoteRequest{BusID: busID, SeatNumbers: []string{"1A"}}
	if err := v.expect(http.MethodPost, "/api/payments/quote", req, false, http.StatusOK, &quote); err != nil {
		return err
	}

	sum := quote.Subtotal + quote.ServiceFee + quote.ConvenienceFee + quote.GSTAmount
	if quote.Subtotal != 500 || quote.Total != sum {
		return fmt.Errorf("POST /api/payments/quote: inconsistent breakdown %+v", quote)
	}
	return nil
}

func (v *SmokeValidator) validateBooking(busID int64) error {
	req := models.CreatePaymentRequest{BusID: busID, SeatNumbers: []string{"1A"}, CardDetails: smokeCard}

	var payment models.Payment
	if err := v.expect(http.MethodPost, "/api/payments", req, false, http.StatusCreated, &payment); err != nil {
		return err
	}
	if payment.Status != models.PaymentStatusConfirmed || len(payment.Seats) != 1 {
		return fmt.Errorf("POST /api/payments: unexpected payment %+v", payment)
	}

	var dup apiError
	if err := v.expect(http.MethodPost, "/api/payments", req, false, http.StatusBadRequest, &dup); err != nil {
		return fmt.Errorf("double booking: %w", err)
	}
	if dup.Code != string(apperrors.KindSeatAlreadyBooked) || dup.Seat != "1A" {
		return fmt.Errorf("double booking: expected %s for 1A, got %+v", apperrors.KindSeatAlreadyBooked, dup)
	}

	badCard := req
	badCard.SeatNumbers = []string{"1B"}
	badCard.CardDetails.CardNumber = "4111"
	var cardErr apiError
	if err := v.expect(http.MethodPost, "/api/payments", badCard, false, http.StatusBadRequest, &cardErr); err != nil {
		return fmt.Errorf("bad card: %w", err)
	}
	if cardErr.Code != string(apperrors.KindInvalidCardDetails) || cardErr.Field != "cardNumber" {
		return fmt.Errorf("bad card: expected %s on cardNumber, got %+v", apperrors.KindInvalidCardDetails, cardErr)
	}
	return nil
}

func (v *SmokeValidator) validateSeatMap(busID int64) error {
	var seatMap models.SeatMapResponse
	if err := v.expect(http.MethodGet, fmt.Sprintf("/api/buses/%d/seats", busID), nil, false, http.StatusOK, &seatMap); err != nil {
		return err
	}
	if seatMap.AvailableSeats != 1 {
		return fmt.Errorf("expected 1 available seat after booking, got %d", seatMap.AvailableSeats)
	}
	return nil
}

// expect выполняет запрос и проверяет статус; тело ответа декодируется в out
func (v *SmokeValidator) expect(method, path string, body interface{}, auth bool, status int, out interface{}) error {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequest(method, v.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if auth {
		switch {
		case v.creds.Token != "":
			req.Header.Set("Authorization", "Bearer "+v.creds.Token)
		case v.creds.Username != "":
			req.SetBasicAuth(v.creds.Username, v.creds.Password)
		}
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: failed to read response: %w", method, path, err)
	}
	if resp.StatusCode != status {
		return fmt.Errorf("%s %s: expected %d, got %d: %s", method, path, status, resp.StatusCode, data)
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("%s %s: failed to decode response: %w", method, path, err)
		}
	}

	slog.Info("Smoke check passed", "method", method, "path", path, "status", status)
	return nil
}

// SignToken выпускает HS256 токен для пользователя, как его понимает API
func SignToken(secret string, userID int64, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"id":  userID,
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
