// Package http is the REST surface of a node: commands and queries for the
// principals it hosts, plus the endpoint other nodes use to request
// countersignatures.
package http

import (
	"context"
	"errors"
	"net/http"
	"sort"

	"orderchain/internal/adapters/out/peerhttp"
	"orderchain/internal/core/application/commit"
	"orderchain/internal/core/application/usecases/commands"
	"orderchain/internal/core/application/usecases/queries"
	"orderchain/internal/core/domain/model/kernel"
	"orderchain/internal/core/domain/model/order"
	"orderchain/internal/core/domain/model/proposal"
	"orderchain/internal/core/ports"
	"orderchain/internal/pkg/errs"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type (
	CreateOrderHandler interface {
		Handle(ctx context.Context, cmd commands.CreateOrderCommand) (*commit.FinalizedRecord, error)
	}
	AdvanceOrderHandler interface {
		Handle(ctx context.Context, cmd commands.AdvanceOrderCommand) (*commit.FinalizedRecord, error)
	}
	GetOrderHandler interface {
		Handle(ctx context.Context, query queries.GetOrderQuery) (queries.OrderView, error)
	}
	GetOrderHistoryHandler interface {
		Handle(ctx context.Context, query queries.GetOrderHistoryQuery) ([]queries.OrderView, error)
	}
	ListOrdersHandler interface {
		Handle(ctx context.Context, query queries.ListOrdersQuery) ([]queries.OrderView, error)
	}
	ListParticipantOrdersHandler interface {
		Handle(ctx context.Context, query queries.ListParticipantOrdersQuery) ([]queries.OrderView, error)
	}
)

// Handlers groups the use cases the server exposes.
type Handlers struct {
	CreateOrder           CreateOrderHandler
	AdvanceOrder          AdvanceOrderHandler
	GetOrder              GetOrderHandler
	GetOrderHistory       GetOrderHistoryHandler
	ListOrders            ListOrdersHandler
	ListParticipantOrders ListParticipantOrdersHandler
}

// commandRoutes are the per-command aliases of the generic advance route.
var commandRoutes = map[string]order.CommandKind{
	"confirm":          order.CommandConfirm,
	"confirm-pickup":   order.CommandConfirmPickup,
	"ship":             order.CommandShip,
	"delivery":         order.CommandDelivery,
	"confirm-delivery": order.CommandConfirmDelivery,
}

type Server struct {
	handlers Handlers
	reviewer ports.ProposalReviewer
	identity ports.IdentityService
	peers    map[kernel.Principal]string
	logger   *zap.Logger
}

func NewServer(
	handlers Handlers,
	reviewer ports.ProposalReviewer,
	identity ports.IdentityService,
	peers map[kernel.Principal]string,
	logger *zap.Logger,
) (*Server, error) {
	if handlers.CreateOrder == nil || handlers.AdvanceOrder == nil {
		return nil, errs.NewValueIsRequiredError("command handlers")
	}
	if handlers.GetOrder == nil || handlers.GetOrderHistory == nil ||
		handlers.ListOrders == nil || handlers.ListParticipantOrders == nil {
		return nil, errs.NewValueIsRequiredError("query handlers")
	}
	if reviewer == nil {
		return nil, errs.NewValueIsRequiredError("reviewer")
	}
	if identity == nil {
		return nil, errs.NewValueIsRequiredError("identity")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		handlers: handlers,
		reviewer: reviewer,
		identity: identity,
		peers:    peers,
		logger:   logger,
	}, nil
}

// Register mounts every route on e. Routes acting for a principal require a
// bearer token; the peer endpoint is protected by the signatures it carries.
func (s *Server) Register(e *echo.Echo, auth *Authenticator) {
	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "Healthy")
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.POST(peerhttp.ProposalsPath, s.ReviewProposal)

	authenticated := auth.Middleware()
	e.POST("/orders", s.CreateOrder, authenticated)
	e.POST("/orders/:id/advance", s.AdvanceOrder, authenticated)
	for route, kind := range commandRoutes {
		e.POST("/orders/:id/"+route, s.advanceWith(kind), authenticated)
	}
	e.GET("/orders", s.ListOrders, authenticated)
	e.GET("/orders/:id", s.GetOrder, authenticated)
	e.GET("/orders/:id/history", s.GetOrderHistory, authenticated)
	e.GET("/my-orders", s.ListMyOrders, authenticated)
	e.GET("/me", s.Me, authenticated)
	e.GET("/peers", s.Peers, authenticated)
}

// CreateOrder handles POST /orders. The caller is the buyer.
func (s *Server) CreateOrder(c echo.Context) error {
	caller, _ := CallerFrom(c)

	var body CreateOrderRequest
	if err := c.Bind(&body); err != nil {
		return s.fail(c, errs.NewValueIsInvalidErrorWithCause("body", err))
	}

	cmd, err := s.createCommand(caller, body)
	if err != nil {
		return s.fail(c, err)
	}

	finalized, err := s.handlers.CreateOrder.Handle(c.Request().Context(), cmd)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusCreated, fromFinalized(finalized))
}

// AdvanceOrder handles POST /orders/:id/advance {"command": "..."}.
func (s *Server) AdvanceOrder(c echo.Context) error {
	var body AdvanceOrderRequest
	if err := c.Bind(&body); err != nil {
		return s.fail(c, errs.NewValueIsInvalidErrorWithCause("body", err))
	}
	kind, err := order.ParseCommandKind(body.Command)
	if err != nil {
		return s.fail(c, err)
	}
	return s.advance(c, kind, body.ExpectedStatus)
}

func (s *Server) advanceWith(kind order.CommandKind) echo.HandlerFunc {
	return func(c echo.Context) error {
		var body AdvanceOrderRequest
		if c.Request().ContentLength != 0 {
			if err := c.Bind(&body); err != nil {
				return s.fail(c, errs.NewValueIsInvalidErrorWithCause("body", err))
			}
		}
		return s.advance(c, kind, body.ExpectedStatus)
	}
}

func (s *Server) advance(c echo.Context, kind order.CommandKind, expectedStatus string) error {
	caller, _ := CallerFrom(c)

	orderID, err := orderIDParam(c)
	if err != nil {
		return s.fail(c, err)
	}

	var expected *order.Status
	if expectedStatus != "" {
		status, parseErr := order.ParseStatus(expectedStatus)
		if parseErr != nil {
			return s.fail(c, parseErr)
		}
		expected = &status
	}

	cmd, err := commands.NewAdvanceOrderCommand(orderID, kind, caller, expected)
	if err != nil {
		return s.fail(c, err)
	}

	finalized, err := s.handlers.AdvanceOrder.Handle(c.Request().Context(), cmd)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, fromFinalized(finalized))
}

func (s *Server) GetOrder(c echo.Context) error {
	orderID, err := orderIDParam(c)
	if err != nil {
		return s.fail(c, err)
	}
	query, err := queries.NewGetOrderQuery(orderID)
	if err != nil {
		return s.fail(c, err)
	}

	view, err := s.handlers.GetOrder.Handle(c.Request().Context(), query)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, fromView(view))
}

func (s *Server) GetOrderHistory(c echo.Context) error {
	orderID, err := orderIDParam(c)
	if err != nil {
		return s.fail(c, err)
	}
	query, err := queries.NewGetOrderHistoryQuery(orderID)
	if err != nil {
		return s.fail(c, err)
	}

	views, err := s.handlers.GetOrderHistory.Handle(c.Request().Context(), query)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, fromViews(views))
}

// ListOrders handles GET /orders: every order stored on this node.
func (s *Server) ListOrders(c echo.Context) error {
	views, err := s.handlers.ListOrders.Handle(c.Request().Context(), queries.NewListOrdersQuery())
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, fromViews(views))
}

// ListMyOrders handles GET /my-orders: the orders the caller takes part in.
func (s *Server) ListMyOrders(c echo.Context) error {
	caller, _ := CallerFrom(c)
	query, err := queries.NewListParticipantOrdersQuery(caller)
	if err != nil {
		return s.fail(c, err)
	}

	views, err := s.handlers.ListParticipantOrders.Handle(c.Request().Context(), query)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, fromViews(views))
}

// Me handles GET /me: the principals hosted by this node.
func (s *Server) Me(c echo.Context) error {
	local := s.identity.LocalPrincipals()
	resp := IdentityResponse{Principals: make([]string, 0, len(local))}
	for _, p := range local {
		resp.Principals = append(resp.Principals, p.Name())
	}
	return c.JSON(http.StatusOK, resp)
}

// Peers handles GET /peers: the address book, sorted by principal.
func (s *Server) Peers(c echo.Context) error {
	resp := make([]PeerResponse, 0, len(s.peers))
	for p, address := range s.peers {
		resp = append(resp, PeerResponse{Principal: p.Name(), Address: address})
	}
	sort.Slice(resp, func(i, j int) bool { return resp[i].Principal < resp[j].Principal })
	return c.JSON(http.StatusOK, resp)
}

// ReviewProposal handles POST /peer/proposals. A refusal is a 200 reply
// with Rejected set; only an unreadable body is an HTTP error.
func (s *Server) ReviewProposal(c echo.Context) error {
	var req proposal.Request
	if err := c.Bind(&req); err != nil {
		return s.fail(c, errs.NewValueIsInvalidErrorWithCause("body", err))
	}
	return c.JSON(http.StatusOK, s.reviewer.Review(c.Request().Context(), req))
}

func (s *Server) createCommand(buyer kernel.Principal, body CreateOrderRequest) (commands.CreateOrderCommand, error) {
	var orderID kernel.UUID
	if body.OrderID != "" {
		id, err := kernel.UUIDFromString(body.OrderID)
		if err != nil {
			return commands.CreateOrderCommand{}, wrapField("order_id", err)
		}
		orderID = id
	}

	unitPrice, priceErr := kernel.MoneyFromString(body.UnitPrice)
	shippingCost, shippingErr := kernel.MoneyFromString(body.ShippingCost)
	seller, sellerErr := kernel.NewPrincipal(body.Seller)
	shipper, shipperErr := kernel.NewPrincipal(body.Shipper)
	if err := errors.Join(
		wrapField("unit_price", priceErr),
		wrapField("shipping_cost", shippingErr),
		wrapField("seller", sellerErr),
		wrapField("shipper", shipperErr),
	); err != nil {
		return commands.CreateOrderCommand{}, err
	}

	return commands.NewCreateOrderCommand(orderID, buyer, order.Terms{
		SKU:           body.SKU,
		ProductName:   body.ProductName,
		UnitPrice:     unitPrice,
		Quantity:      body.Quantity,
		ShippingCost:  shippingCost,
		BuyerAddress:  body.BuyerAddress,
		SellerAddress: body.SellerAddress,
	}, seller, shipper)
}

func (s *Server) fail(c echo.Context, err error) error {
	status, kind := statusFor(err)
	log := s.logger.With(
		zap.String("method", c.Request().Method),
		zap.String("path", c.Path()),
		zap.Int("status", status),
		zap.Error(err),
	)
	if status >= http.StatusInternalServerError && status != http.StatusGatewayTimeout {
		log.Error("request failed")
	} else {
		log.Info("request refused")
	}

	resp := newErrorResponse(status, err)
	resp.Kind = kind
	if status == http.StatusInternalServerError {
		resp.Message = http.StatusText(status)
	}
	return c.JSON(status, resp)
}

func orderIDParam(c echo.Context) (kernel.UUID, error) {
	id, err := kernel.UUIDFromString(c.Param("id"))
	if err != nil {
		return kernel.UUID{}, wrapField("id", err)
	}
	return id, nil
}

func wrapField(name string, err error) error {
	if err == nil {
		return nil
	}
	return errs.NewValueIsInvalidErrorWithCause(name, err)
}
