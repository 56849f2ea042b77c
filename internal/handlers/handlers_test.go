package handlers

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	apperrors "busticket/internal/errors"
	"busticket/internal/messaging"
	"busticket/internal/middleware"
	"busticket/internal/models"
	"busticket/internal/repository/repotest"
	"busticket/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const jwtSecret = "handlers-test-secret"

type testAPI struct {
	t        *testing.T
	router   *gin.Engine
	store    *repotest.MemStore
	services *service.Services
	busID    int64
}

func window() *string { s := models.PositionWindow; return &s }

func setupAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := repotest.NewMemStore()
	for _, id := range []int64{7, 8} {
		store.AddUser(models.User{
			UserID:       id,
			Email:        fmt.Sprintf("user%d@example.com", id),
			PasswordHash: fmt.Sprintf("%x", sha256.Sum256([]byte("secret"))),
			IsActive:     true,
		})
	}

	publisher, err := messaging.NewNATSClient(messaging.Config{Enabled: false})
	require.NoError(t, err)

	services := service.NewServices(service.Dependencies{
		Store:     store,
		Publisher: publisher,
		Booking:   service.BookingOptions{MaxRetries: 3, RetryBackoff: time.Millisecond},
	})

	auth := middleware.NewAuthenticator(store, nil, middleware.AuthConfig{JWTSecret: jwtSecret, CookieName: "accessToken"})

	r := gin.New()
	r.Use(middleware.RequestID())
	NewHandlers(services).Register(r.Group("/api"), auth)

	bus, err := services.Buses.Create(context.Background(), &models.CreateBusRequest{
		BusNumber: "KA-01-1234",
		Amenities: []string{"wifi"},
		Seats: []models.Seat{
			{SeatNumber: "1A", Type: models.SeatTypeSeater, SeatingPosition: window(), Price: 500, Row: 1, Column: 1},
			{SeatNumber: "1B", Type: models.SeatTypeSeater, SeatingPosition: window(), Price: 500, Row: 1, Column: 2},
			{SeatNumber: "2A", Type: models.SeatTypeSleeper, Price: 900, Row: 2, Column: 1},
		},
	})
	require.NoError(t, err)

	return &testAPI{t: t, router: r, store: store, services: services, busID: bus.ID}
}

func (a *testAPI) token(userID int64) string {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"id": userID}).SignedString([]byte(jwtSecret))
	require.NoError(a.t, err)
	return token
}

// do sends body as JSON; userID 0 sends no credentials.
func (a *testAPI) do(method, path string, body interface{}, userID int64) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if s, ok := body.(string); ok {
		buf.WriteString(s)
	} else if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != 0 {
		req.Header.Set("Authorization", "Bearer "+a.token(userID))
	}

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *testAPI) paymentRequest(seats ...string) gin.H {
	return gin.H{
		"busId":       a.busID,
		"seatNumbers": seats,
		"cardDetails": gin.H{
			"cardNumber":     "4111111111111111",
			"cardHolderName": "Asha Rao",
			"expiryDate":     "12/29",
			"cvv":            "123",
		},
	}
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

type errorBody struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Field     string `json:"field"`
	Seat      string `json:"seat"`
	RequestID string `json:"request_id"`
}

func TestCreatePayment_Guest(t *testing.T) {
	api := setupAPI(t)

	w := api.do(http.MethodPost, "/api/payments", api.paymentRequest("1A", "1B"), 0)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var payment struct {
		ID             int64               `json:"id"`
		UserID         *int64              `json:"userId"`
		Bus            *models.BusSummary  `json:"bus"`
		Seats          []models.BookedSeat `json:"seats"`
		Subtotal       int64               `json:"subtotal"`
		ServiceFee     int64               `json:"serviceFee"`
		ConvenienceFee int64               `json:"convenienceFee"`
		GSTAmount      int64               `json:"gstAmount"`
		Amount         int64               `json:"amount"`
		Status         string              `json:"status"`
		CardDetails    map[string]string   `json:"cardDetails"`
	}
	decode(t, w, &payment)

	assert.Nil(t, payment.UserID)
	require.NotNil(t, payment.Bus)
	assert.Equal(t, "KA-01-1234", payment.Bus.BusNumber)
	assert.Len(t, payment.Seats, 2)
	assert.Equal(t, int64(1000), payment.Subtotal)
	assert.Equal(t, int64(100), payment.ServiceFee)
	assert.Equal(t, int64(20), payment.ConvenienceFee)
	assert.Equal(t, int64(134), payment.GSTAmount)
	assert.Equal(t, int64(1254), payment.Amount)
	assert.Equal(t, models.PaymentStatusConfirmed, payment.Status)
	assert.Equal(t, "************1111", payment.CardDetails["cardNumber"])
	assert.NotContains(t, w.Body.String(), "cvv")
}

func TestCreatePayment_Errors(t *testing.T) {
	api := setupAPI(t)
	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/api/payments", api.paymentRequest("1A"), 7).Code)

	badCVV := api.paymentRequest("2A")
	badCVV["cardDetails"].(gin.H)["cvv"] = "12"
	unknownBus := api.paymentRequest("2A")
	unknownBus["busId"] = 999

	tests := []struct {
		name   string
		body   interface{}
		status int
		code   apperrors.Kind
		field  string
		seat   string
	}{
		{"already booked", api.paymentRequest("1B", "1A"), http.StatusBadRequest, apperrors.KindSeatAlreadyBooked, "", "1A"},
		{"unknown seat", api.paymentRequest("9Z"), http.StatusNotFound, apperrors.KindSeatNotFound, "", "9Z"},
		{"invalid cvv", badCVV, http.StatusBadRequest, apperrors.KindInvalidCardDetails, "cvv", ""},
		{"unknown bus", unknownBus, http.StatusNotFound, apperrors.KindNotFound, "", ""},
		{"no seats", api.paymentRequest(), http.StatusBadRequest, apperrors.KindInvalidRequest, "", ""},
		{"malformed json", `{"busId": `, http.StatusBadRequest, apperrors.KindInvalidRequest, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := api.do(http.MethodPost, "/api/payments", tt.body, 0)
			assert.Equal(t, tt.status, w.Code, w.Body.String())

			var body errorBody
			decode(t, w, &body)
			assert.Equal(t, string(tt.code), body.Code)
			assert.Equal(t, tt.field, body.Field)
			assert.Equal(t, tt.seat, body.Seat)
			assert.NotEmpty(t, body.Error)
			assert.NotEmpty(t, body.RequestID)
		})
	}

	seatMap, err := api.services.Buses.SeatMap(context.Background(), api.busID)
	require.NoError(t, err)
	assert.Equal(t, 2, seatMap.AvailableSeats, "failed bookings leave seats untouched")
}

func TestCreatePayment_InvalidToken(t *testing.T) {
	api := setupAPI(t)

	req := httptest.NewRequest(http.MethodPost, "/api/payments", bytes.NewBufferString(`{}`))
	req.Header.Set("Authorization", "Bearer nope")
	w := httptest.NewRecorder()
	api.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestListPayments(t *testing.T) {
	api := setupAPI(t)

	assert.Equal(t, http.StatusUnauthorized, api.do(http.MethodGet, "/api/payments", nil, 0).Code)

	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/api/payments", api.paymentRequest("1A"), 7).Code)
	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/api/payments", api.paymentRequest("1B"), 8).Code)
	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/api/payments", api.paymentRequest("2A"), 7).Code)

	w := api.do(http.MethodGet, "/api/payments", nil, 7)
	require.Equal(t, http.StatusOK, w.Code)

	var payments []struct {
		Seats []models.BookedSeat `json:"seats"`
	}
	decode(t, w, &payments)
	require.Len(t, payments, 2)
	assert.Equal(t, "2A", payments[0].Seats[0].SeatNumber)
	assert.Equal(t, "1A", payments[1].Seats[0].SeatNumber)

	w = api.do(http.MethodGet, "/api/payments", nil, 9)
	assert.Equal(t, http.StatusUnauthorized, w.Code, "unknown user")
}

func TestListPayments_EmptyIsArray(t *testing.T) {
	api := setupAPI(t)

	w := api.do(http.MethodGet, "/api/payments", nil, 8)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestGetPayment(t *testing.T) {
	api := setupAPI(t)

	var own, guest struct {
		ID int64 `json:"id"`
	}
	decode(t, api.do(http.MethodPost, "/api/payments", api.paymentRequest("1A"), 7), &own)
	decode(t, api.do(http.MethodPost, "/api/payments", api.paymentRequest("1B"), 0), &guest)

	tests := []struct {
		name   string
		path   string
		userID int64
		status int
	}{
		{"owner", fmt.Sprintf("/api/payments/%d", own.ID), 7, http.StatusOK},
		{"other user", fmt.Sprintf("/api/payments/%d", own.ID), 8, http.StatusNotFound},
		{"guest payment", fmt.Sprintf("/api/payments/%d", guest.ID), 7, http.StatusNotFound},
		{"missing", "/api/payments/424242", 7, http.StatusNotFound},
		{"bad id", "/api/payments/abc", 7, http.StatusBadRequest},
		{"anonymous", fmt.Sprintf("/api/payments/%d", own.ID), 0, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := api.do(http.MethodGet, tt.path, nil, tt.userID)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
}

func TestCancelPayment(t *testing.T) {
	api := setupAPI(t)

	var created struct {
		ID int64 `json:"id"`
	}
	decode(t, api.do(http.MethodPost, "/api/payments", api.paymentRequest("1A"), 7), &created)
	path := fmt.Sprintf("/api/payments/%d/cancel", created.ID)

	assert.Equal(t, http.StatusNotFound, api.do(http.MethodPatch, path, nil, 8).Code)

	w := api.do(http.MethodPatch, path, nil, 7)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var cancelled struct {
		Status string `json:"status"`
	}
	decode(t, w, &cancelled)
	assert.Equal(t, models.PaymentStatusCancelled, cancelled.Status)

	w = api.do(http.MethodPatch, path, nil, 7)
	assert.Equal(t, http.StatusBadRequest, w.Code, "second cancel")

	// the seat can be booked again
	w = api.do(http.MethodPost, "/api/payments", api.paymentRequest("1A"), 8)
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestPaymentTicket(t *testing.T) {
	api := setupAPI(t)

	var created struct {
		ID int64 `json:"id"`
	}
	decode(t, api.do(http.MethodPost, "/api/payments", api.paymentRequest("2A"), 7), &created)

	w := api.do(http.MethodGet, fmt.Sprintf("/api/payments/%d/ticket", created.ID), nil, 7)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")))
}

func TestQuotePayment(t *testing.T) {
	api := setupAPI(t)

	w := api.do(http.MethodPost, "/api/payments/quote", gin.H{"busId": api.busID, "seatNumbers": []string{"1A", "2A"}}, 0)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var quote models.QuoteResponse
	decode(t, w, &quote)
	assert.Equal(t, int64(1400), quote.Subtotal)
	assert.Equal(t, int64(100), quote.ServiceFee)
	assert.Equal(t, int64(28), quote.ConvenienceFee)
	assert.Equal(t, int64(183), quote.GSTAmount)
	assert.Equal(t, int64(1711), quote.Total)

	w = api.do(http.MethodPost, "/api/payments/quote", gin.H{"seatNumbers": []string{"1A"}}, 0)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateBus(t *testing.T) {
	api := setupAPI(t)

	body := gin.H{
		"busNumber": "KA-02-0001",
		"amenities": []string{"ac", " "},
		"seats": []gin.H{
			{"type": "Seater", "seatingPosition": "Window", "price": 400, "row": 1, "column": 1},
			{"type": "Sleeper", "seatingPosition": "Window", "price": 800, "row": 1, "column": 2},
		},
	}

	assert.Equal(t, http.StatusUnauthorized, api.do(http.MethodPost, "/api/buses", body, 0).Code)

	w := api.do(http.MethodPost, "/api/buses", body, 7)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var bus models.Bus
	decode(t, w, &bus)
	assert.Equal(t, 2, bus.Capacity)
	assert.Equal(t, []string{"ac"}, bus.Amenities)
	require.Len(t, bus.Seats, 2)
	assert.Equal(t, "1A", bus.Seats[0].SeatNumber)
	assert.Nil(t, bus.Seats[1].SeatingPosition)

	w = api.do(http.MethodPost, "/api/buses", body, 7)
	var dup errorBody
	decode(t, w, &dup)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "busNumber", dup.Field)

	w = api.do(http.MethodGet, fmt.Sprintf("/api/buses/%d", bus.ID), nil, 0)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, http.StatusNotFound, api.do(http.MethodGet, "/api/buses/999", nil, 0).Code)
}

func TestCreateBus_InvalidSeats(t *testing.T) {
	api := setupAPI(t)

	body := gin.H{
		"busNumber": "KA-03-0001",
		"seats": []gin.H{
			{"seatNumber": "1A", "type": "Seater", "price": 400},
		},
	}
	w := api.do(http.MethodPost, "/api/buses", body, 7)

	var resp errorBody
	decode(t, w, &resp)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, string(apperrors.KindValidation), resp.Code)
	assert.Equal(t, "seatingPosition", resp.Field)
}

func TestListBuses(t *testing.T) {
	api := setupAPI(t)

	w := api.do(http.MethodGet, "/api/buses", nil, 0)
	require.Equal(t, http.StatusOK, w.Code)

	var buses []models.Bus
	decode(t, w, &buses)
	require.Len(t, buses, 1)
	assert.Equal(t, "KA-01-1234", buses[0].BusNumber)
	assert.Equal(t, 3, buses[0].Capacity)
	assert.Empty(t, buses[0].Seats)
}

func TestUpdateBus(t *testing.T) {
	api := setupAPI(t)
	path := fmt.Sprintf("/api/buses/%d", api.busID)
	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/api/payments", api.paymentRequest("1A"), 0).Code)

	seats := func(numbers ...string) []gin.H {
		out := make([]gin.H, 0, len(numbers))
		for _, n := range numbers {
			out = append(out, gin.H{"seatNumber": n, "type": "Sleeper", "price": 750})
		}
		return out
	}

	assert.Equal(t, http.StatusUnauthorized,
		api.do(http.MethodPut, path, gin.H{"busNumber": "KA-01-1234", "seats": seats("1A")}, 0).Code)
	assert.Equal(t, http.StatusNotFound,
		api.do(http.MethodPut, "/api/buses/999", gin.H{"busNumber": "KA-09", "seats": seats("1A")}, 7).Code)

	tests := []struct {
		name  string
		body  gin.H
		field string
	}{
		{"drops booked seat", gin.H{"busNumber": "KA-01-1234", "seats": seats("1B", "2A")}, "seats"},
		{"duplicate seats", gin.H{"busNumber": "KA-01-1234", "seats": seats("1A", "1A")}, "seatNumber"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := api.do(http.MethodPut, path, tt.body, 7)
			var resp errorBody
			decode(t, w, &resp)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.field, resp.Field)
		})
	}

	w := api.do(http.MethodPut, path, gin.H{"busNumber": "KA-01-1234", "amenities": []string{"ac"}, "seats": seats("1A", "3A", "3B", "3C")}, 7)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var bus models.Bus
	decode(t, w, &bus)
	assert.Equal(t, 4, bus.Capacity)
	assert.Equal(t, []string{"ac"}, bus.Amenities)

	w = api.do(http.MethodGet, path+"/seats", nil, 0)
	require.Equal(t, http.StatusOK, w.Code)
	var seatMap models.SeatMapResponse
	decode(t, w, &seatMap)
	assert.Equal(t, 4, seatMap.Capacity)
	assert.Equal(t, 3, seatMap.AvailableSeats)
	assert.False(t, seatMap.Seats[0].IsAvailable, "1A stays booked")
	assert.Equal(t, int64(750), seatMap.Seats[0].Price)
}

func TestGetSeatMap(t *testing.T) {
	api := setupAPI(t)
	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/api/payments", api.paymentRequest("1B"), 0).Code)

	w := api.do(http.MethodGet, fmt.Sprintf("/api/buses/%d/seats", api.busID), nil, 0)
	require.Equal(t, http.StatusOK, w.Code)

	var seatMap models.SeatMapResponse
	decode(t, w, &seatMap)
	assert.Equal(t, 3, seatMap.Capacity)
	assert.Equal(t, 2, seatMap.AvailableSeats)
	assert.False(t, seatMap.Seats[1].IsAvailable)
}

func TestRoutes(t *testing.T) {
	api := setupAPI(t)

	body := gin.H{"startLocation": "Bengaluru", "endLocation": "  Mysuru ", "busIds": []int64{api.busID}}
	w := api.do(http.MethodPost, "/api/routes", body, 7)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = api.do(http.MethodPost, "/api/routes", body, 7)
	assert.Equal(t, http.StatusBadRequest, w.Code, "duplicate route")

	w = api.do(http.MethodGet, "/api/routes/search?from=bengaluru&to=MYSURU", nil, 0)
	require.Equal(t, http.StatusOK, w.Code)

	var results []models.RouteSearchResult
	decode(t, w, &results)
	require.Len(t, results, 1)
	assert.Equal(t, "Mysuru", results[0].EndLocation)
	require.Len(t, results[0].Buses, 1)
	assert.Equal(t, 3, results[0].Buses[0].AvailableSeats)

	w = api.do(http.MethodGet, "/api/routes/search?from=bengaluru", nil, 0)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{apperrors.InvalidRequest("x"), http.StatusBadRequest},
		{apperrors.InvalidCard("cvv", "x"), http.StatusBadRequest},
		{apperrors.Validation("seats", "x"), http.StatusBadRequest},
		{apperrors.SeatAlreadyBooked("1A"), http.StatusBadRequest},
		{apperrors.NotFound("bus"), http.StatusNotFound},
		{apperrors.SeatNotFound("1A"), http.StatusNotFound},
		{apperrors.Conflict("x"), http.StatusConflict},
		{apperrors.Persistence("x", fmt.Errorf("db down")), http.StatusInternalServerError},
		{fmt.Errorf("wrapped: %w", apperrors.ErrUnauthorized), http.StatusUnauthorized},
		{fmt.Errorf("plain"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.status, statusOf(tt.err), tt.err.Error())
	}
}

func TestRespondError_HidesInternalDetails(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/fail", func(c *gin.Context) {
		respondError(c, apperrors.Persistence("failed to insert payment", fmt.Errorf("pq: connection refused")))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/fail", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "connection refused")
	assert.Contains(t, w.Body.String(), string(apperrors.KindPersistence))
}
