package routes_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"boxoffice/internal/events"
	"boxoffice/internal/orders"
	"boxoffice/internal/payments"
	"boxoffice/internal/seats"
	"boxoffice/internal/shared/middleware"
	"boxoffice/internal/sweeper"
	"boxoffice/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/suite"
)

type envelope struct {
	Status     string          `json:"status"`
	StatusCode int             `json:"status_code"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
	Errors     json.RawMessage `json:"errors"`
}

type errorDetail struct {
	Code  string   `json:"code"`
	Seats []string `json:"seats"`
}

// detail decodes typed errors; validation failures carry a plain string instead.
func (e envelope) detail() errorDetail {
	var d errorDetail
	_ = json.Unmarshal(e.Errors, &d)
	return d
}

// CheckoutFlowSuite drives the HTTP surface end to end over the in-memory stack.
type CheckoutFlowSuite struct {
	suite.Suite
	stack  *testutil.Stack
	engine *gin.Engine
	event  events.Event
	seats  []seats.Seat
	admin  string
}

func TestCheckoutFlowSuite(t *testing.T) {
	suite.Run(t, new(CheckoutFlowSuite))
}

func (s *CheckoutFlowSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)
}

func (s *CheckoutFlowSuite) SetupTest() {
	cfg := testutil.TestConfig()
	cfg.JWT.Secret = "flow-jwt-secret"
	s.stack = testutil.NewStackWithConfig(cfg)
	s.event, s.seats = s.stack.World.SeedEvent(testutil.Epoch, 5000, "A1", "A2", "A3")

	s.engine = gin.New()
	api := s.engine.Group("/api/v1")
	seats.SetupSeatRoutes(api, seats.NewController(s.stack.Seats))
	orders.SetupOrderRoutes(api, orders.NewController(s.stack.Orders), cfg)
	payments.SetupPaymentRoutes(api, payments.NewController(s.stack.Payments), cfg)
	sweeper.SetupSweepRoutes(s.engine, sweeper.NewController(s.stack.Sweeper, s.stack.Clock), cfg.Sweeper.Secret)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": "ops-1",
		"email":   "ops@example.com",
		"role":    "ADMIN",
		"type":    "access",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(cfg.JWT.Secret))
	s.Require().NoError(err)
	s.admin = signed
}

func (s *CheckoutFlowSuite) do(method, path string, body interface{}, headers map[string]string) (int, envelope) {
	var raw []byte
	if body != nil {
		var err error
		raw, err = json.Marshal(body)
		s.Require().NoError(err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	var env envelope
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func (s *CheckoutFlowSuite) session(id string) map[string]string {
	return map[string]string{middleware.SessionHeader: id}
}

func (s *CheckoutFlowSuite) seatIDs(labels ...string) []string {
	var out []string
	for _, label := range labels {
		for _, seat := range s.seats {
			if seat.Label() == label {
				out = append(out, seat.ID.String())
			}
		}
	}
	return out
}

func (s *CheckoutFlowSuite) createOrder(sessionID string, labels ...string) orders.CreateOrderResponse {
	code, _ := s.do(http.MethodPost, "/api/v1/holds", map[string]interface{}{
		"event_id": s.event.ID.String(),
		"seat_ids": s.seatIDs(labels...),
	}, s.session(sessionID))
	s.Require().Equal(http.StatusOK, code)

	code, env := s.do(http.MethodPost, "/api/v1/orders", map[string]interface{}{
		"event_id": s.event.ID.String(),
		"seat_ids": s.seatIDs(labels...),
	}, s.session(sessionID))
	s.Require().Equal(http.StatusCreated, code)

	var created orders.CreateOrderResponse
	s.Require().NoError(json.Unmarshal(env.Data, &created))
	return created
}

func (s *CheckoutFlowSuite) TestContestedHoldNamesTheSeat() {
	code, _ := s.do(http.MethodPost, "/api/v1/holds", map[string]interface{}{
		"event_id": s.event.ID.String(),
		"seat_ids": s.seatIDs("A1", "A2"),
	}, s.session("alice"))
	s.Equal(http.StatusOK, code)

	code, env := s.do(http.MethodPost, "/api/v1/holds", map[string]interface{}{
		"event_id": s.event.ID.String(),
		"seat_ids": s.seatIDs("A2", "A3"),
	}, s.session("bob"))
	s.Equal(http.StatusConflict, code)
	s.Equal("SEAT_CONTESTED", env.detail().Code)
	s.Equal([]string{"A2"}, env.detail().Seats)

	// A3 was not taken by the failed request
	code, _ = s.do(http.MethodPost, "/api/v1/holds", map[string]interface{}{
		"event_id": s.event.ID.String(),
		"seat_ids": s.seatIDs("A3"),
	}, s.session("carol"))
	s.Equal(http.StatusOK, code)
}

func (s *CheckoutFlowSuite) TestHoldsRequireSession() {
	code, _ := s.do(http.MethodPost, "/api/v1/holds", map[string]interface{}{
		"event_id": s.event.ID.String(),
		"seat_ids": s.seatIDs("A1"),
	}, nil)
	s.Equal(http.StatusBadRequest, code)
}

func (s *CheckoutFlowSuite) TestBankTransferCheckout() {
	created := s.createOrder("alice", "A1", "A2")
	number := created.Order.OrderNumber
	bearer := map[string]string{"Authorization": "Bearer " + created.AccessToken}

	code, env := s.do(http.MethodGet, "/api/v1/orders/"+number, nil, map[string]string{"Authorization": "Bearer nope"})
	s.Equal(http.StatusUnauthorized, code)
	s.Equal("INVALID_TOKEN", env.detail().Code)

	code, env = s.do(http.MethodPost, "/api/v1/orders/"+number+"/claim-payment", map[string]interface{}{
		"contact": map[string]string{"name": "Ada Lovelace", "email": "ada@example.com"},
	}, bearer)
	s.Require().Equal(http.StatusOK, code)
	var claimed orders.OrderResponse
	s.Require().NoError(json.Unmarshal(env.Data, &claimed))
	s.Equal(orders.StatusPendingConfirmation, claimed.Status)

	confirmPath := "/api/v1/admin/orders/" + created.Order.ID + "/confirm"
	code, _ = s.do(http.MethodPost, confirmPath, nil, nil)
	s.Equal(http.StatusUnauthorized, code)

	admin := map[string]string{"Authorization": "Bearer " + s.admin}
	code, env = s.do(http.MethodPost, confirmPath, map[string]interface{}{"transaction_id": "BANK-778"}, admin)
	s.Require().Equal(http.StatusOK, code)
	var result payments.Result
	s.Require().NoError(json.Unmarshal(env.Data, &result))
	s.False(result.Replayed)
	s.Equal(orders.StatusPaid, result.Order.Status)

	code, env = s.do(http.MethodPost, confirmPath, map[string]interface{}{"transaction_id": "BANK-778"}, admin)
	s.Require().Equal(http.StatusOK, code)
	s.Require().NoError(json.Unmarshal(env.Data, &result))
	s.True(result.Replayed)

	code, env = s.do(http.MethodGet, "/api/v1/events/"+s.event.ID.String()+"/seats", nil, nil)
	s.Require().Equal(http.StatusOK, code)
	var seatMap seats.SeatMapResponse
	s.Require().NoError(json.Unmarshal(env.Data, &seatMap))
	status := map[string]seats.SeatStatus{}
	for _, entry := range seatMap.Seats {
		status[entry.Label] = entry.Status
	}
	s.Equal(seats.StatusSold, status["A1"])
	s.Equal(seats.StatusSold, status["A2"])
	s.Equal(seats.StatusAvailable, status["A3"])
	s.Len(s.stack.Sink.Notifications("ORDER_PAID"), 1)
}

func (s *CheckoutFlowSuite) TestGatewayCallbackRequiresSignature() {
	created := s.createOrder("alice", "A3")
	body := map[string]interface{}{
		"reference":      created.Order.OrderNumber,
		"transaction_id": "gw-1",
		"amount":         created.Order.TotalAmount,
		"method":         "CARD",
		"status":         "SUCCEEDED",
	}
	raw, err := json.Marshal(body)
	s.Require().NoError(err)

	code, _ := s.do(http.MethodPost, "/api/v1/payments/callback", body, map[string]string{middleware.SignatureHeader: "deadbeef"})
	s.Equal(http.StatusUnauthorized, code)

	signed := map[string]string{middleware.SignatureHeader: middleware.Sign(s.stack.Config.Payments.WebhookSecret, raw)}
	code, env := s.do(http.MethodPost, "/api/v1/payments/callback", body, signed)
	s.Require().Equal(http.StatusOK, code)
	var result payments.Result
	s.Require().NoError(json.Unmarshal(env.Data, &result))
	s.Equal(orders.StatusPaid, result.Order.Status)
	s.Equal(seats.StatusSold, s.stack.World.Seat(s.seats[2].ID).Status)
}

func (s *CheckoutFlowSuite) TestRejectReleasesSeats() {
	created := s.createOrder("alice", "A1")
	admin := map[string]string{"Authorization": "Bearer " + s.admin}

	code, env := s.do(http.MethodPost, "/api/v1/admin/orders/"+created.Order.ID+"/reject",
		map[string]string{"reason": "transfer never arrived"}, admin)
	s.Require().Equal(http.StatusOK, code)
	var rejected orders.OrderResponse
	s.Require().NoError(json.Unmarshal(env.Data, &rejected))
	s.Equal(orders.StatusCancelled, rejected.Status)
	s.Equal(seats.StatusAvailable, s.stack.World.Seat(s.seats[0].ID).Status)

	code, env = s.do(http.MethodPost, "/api/v1/admin/orders/"+created.Order.ID+"/confirm", nil, admin)
	s.Equal(http.StatusConflict, code)
	s.Equal("ALREADY_FINAL", env.detail().Code)
}

func (s *CheckoutFlowSuite) TestSweepExpiresAbandonedOrder() {
	created := s.createOrder("alice", "A1", "A2")
	s.stack.Clock.Advance(16 * time.Minute)

	code, _ := s.do(http.MethodPost, "/internal/sweep", nil, map[string]string{middleware.SweepHeader: s.stack.Config.Sweeper.Secret})
	s.Require().Equal(http.StatusOK, code)

	code, env := s.do(http.MethodGet, "/api/v1/orders/"+created.Order.OrderNumber, nil,
		map[string]string{"Authorization": "Bearer " + created.AccessToken})
	s.Require().Equal(http.StatusOK, code)
	var order orders.OrderResponse
	s.Require().NoError(json.Unmarshal(env.Data, &order))
	s.Equal(orders.StatusExpired, order.Status)
	s.Equal(seats.StatusAvailable, s.stack.World.Seat(s.seats[0].ID).Status)
}
