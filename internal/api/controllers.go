// Package api implements the thin HTTP composition root of SPEC_FULL.md §2,
// grounded on services/order_service/src/controllers/order_controller.go's
// controller-wraps-service pattern and request/response shapes.
package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"veritariff/tariffengine/internal/apierrors"
	"veritariff/tariffengine/internal/calculator"
	"veritariff/tariffengine/internal/store"
	"veritariff/tariffengine/internal/taric"
)

// respondErr logs and writes an apierrors.AppError as the response body.
func respondErr(ctx *gin.Context, log *zap.Logger, category apierrors.Category, operation, message string, cause error) {
	err := apierrors.New(log, category, operation, message, cause)
	ctx.JSON(err.HTTPStatus, err.Body())
}

// ShipmentController handles shipment CRUD and calculation requests.
type ShipmentController struct {
	shipments  *store.ShipmentRepository
	calculator *calculator.Service
	log        *zap.Logger
}

// NewShipmentController wires a ShipmentController.
func NewShipmentController(shipments *store.ShipmentRepository, calc *calculator.Service, log *zap.Logger) *ShipmentController {
	return &ShipmentController{shipments: shipments, calculator: calc, log: log}
}

// userIDFromContext resolves the authenticated caller's user ID. Real
// authentication is an out-of-scope external collaborator per spec.md §1;
// this reads the ID an upstream auth proxy is expected to set.
func userIDFromContext(ctx *gin.Context) (uuid.UUID, error) {
	raw := ctx.GetHeader("X-User-ID")
	if raw == "" {
		return uuid.UUID{}, errors.New("missing X-User-ID header")
	}
	return uuid.Parse(raw)
}

// CreateShipment creates a new shipment shell (items/costs are added via
// separate calls).
func (c *ShipmentController) CreateShipment(ctx *gin.Context) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		respondErr(ctx, c.log, apierrors.Unauthorized, "create_shipment", "unauthorized", err)
		return
	}

	var body struct {
		Direction            store.Direction `json:"direction" binding:"required"`
		DestinationCountry   *string         `json:"destination_country"`
		OriginCountryDefault string          `json:"origin_country_default" binding:"required"`
		Incoterm             store.Incoterm  `json:"incoterm" binding:"required"`
		Currency             string          `json:"currency" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&body); err != nil {
		respondErr(ctx, c.log, apierrors.Validation, "create_shipment", "invalid request body", err)
		return
	}

	shipment := &store.Shipment{
		ID:                   uuid.New(),
		UserID:               userID,
		Direction:            body.Direction,
		DestinationCountry:   body.DestinationCountry,
		OriginCountryDefault: body.OriginCountryDefault,
		Incoterm:             body.Incoterm,
		Currency:             body.Currency,
		Status:               store.StatusDraft,
	}
	if err := c.shipments.Create(ctx.Request.Context(), shipment); err != nil {
		respondErr(ctx, c.log, apierrors.Database, "create_shipment", "failed to create shipment", err)
		return
	}
	ctx.JSON(http.StatusCreated, shipment)
}

// GetShipment retrieves a single shipment owned by the caller.
func (c *ShipmentController) GetShipment(ctx *gin.Context) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		respondErr(ctx, c.log, apierrors.Unauthorized, "get_shipment", "unauthorized", err)
		return
	}
	shipmentID, err := uuid.Parse(ctx.Param("shipment_id"))
	if err != nil {
		respondErr(ctx, c.log, apierrors.Validation, "get_shipment", "invalid shipment_id", err)
		return
	}

	shipment, err := c.shipments.Get(ctx.Request.Context(), shipmentID, userID)
	if err != nil {
		respondErr(ctx, c.log, apierrors.Database, "get_shipment", "failed to fetch shipment", err)
		return
	}
	if shipment == nil {
		respondErr(ctx, c.log, apierrors.NotFound, "get_shipment", "shipment not found", nil)
		return
	}
	ctx.JSON(http.StatusOK, shipment)
}

// AddItem appends a goods line to a shipment.
func (c *ShipmentController) AddItem(ctx *gin.Context) {
	shipmentID, err := uuid.Parse(ctx.Param("shipment_id"))
	if err != nil {
		respondErr(ctx, c.log, apierrors.Validation, "add_item", "invalid shipment_id", err)
		return
	}

	var item store.ShipmentItem
	if err := ctx.ShouldBindJSON(&item); err != nil {
		respondErr(ctx, c.log, apierrors.Validation, "add_item", "invalid request body", err)
		return
	}
	item.ID = uuid.New()
	item.ShipmentID = shipmentID

	if err := c.shipments.AddItem(ctx.Request.Context(), &item); err != nil {
		respondErr(ctx, c.log, apierrors.Database, "add_item", "failed to add item", err)
		return
	}
	ctx.JSON(http.StatusCreated, item)
}

// SetCosts creates or replaces a shipment's shared cost figures.
func (c *ShipmentController) SetCosts(ctx *gin.Context) {
	shipmentID, err := uuid.Parse(ctx.Param("shipment_id"))
	if err != nil {
		respondErr(ctx, c.log, apierrors.Validation, "set_costs", "invalid shipment_id", err)
		return
	}

	var costs store.ShipmentCosts
	if err := ctx.ShouldBindJSON(&costs); err != nil {
		respondErr(ctx, c.log, apierrors.Validation, "set_costs", "invalid request body", err)
		return
	}
	costs.ShipmentID = shipmentID

	if err := c.shipments.UpsertCosts(ctx.Request.Context(), &costs); err != nil {
		respondErr(ctx, c.log, apierrors.Database, "set_costs", "failed to set costs", err)
		return
	}
	ctx.JSON(http.StatusOK, costs)
}

// Calculate runs the landed-cost calculation for a shipment.
func (c *ShipmentController) Calculate(ctx *gin.Context) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		respondErr(ctx, c.log, apierrors.Unauthorized, "calculate", "unauthorized", err)
		return
	}
	shipmentID, err := uuid.Parse(ctx.Param("shipment_id"))
	if err != nil {
		respondErr(ctx, c.log, apierrors.Validation, "calculate", "invalid shipment_id", err)
		return
	}

	result, err := c.calculator.Calculate(ctx.Request.Context(), shipmentID, userID)
	if err != nil {
		if errors.Is(err, calculator.ErrShipmentNotFound) {
			respondErr(ctx, c.log, apierrors.NotFound, "calculate", "shipment not found", nil)
			return
		}
		respondErr(ctx, c.log, apierrors.Internal, "calculate", "calculation failed", err)
		return
	}
	ctx.JSON(http.StatusOK, result)
}

// HealthCheck reports basic liveness.
func (c *ShipmentController) HealthCheck(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// TaricController exposes a standalone TARIC resolution lookup, useful for
// pre-calculation "what rate would apply" queries.
type TaricController struct {
	resolver *taric.Resolver
	log      *zap.Logger
}

// NewTaricController wires a TaricController.
func NewTaricController(resolver *taric.Resolver, log *zap.Logger) *TaricController {
	return &TaricController{resolver: resolver, log: log}
}

// Resolve runs the TARIC resolution algorithm standalone, without a
// shipment or a full landed-cost calculation.
func (c *TaricController) Resolve(ctx *gin.Context) {
	goodsCode := ctx.Query("goods_code")
	origin := ctx.Query("origin_country")
	if goodsCode == "" || origin == "" {
		respondErr(ctx, c.log, apierrors.Validation, "taric_resolve", "goods_code and origin_country are required", nil)
		return
	}
	var additionalCode *string
	if v := ctx.Query("additional_code"); v != "" {
		additionalCode = &v
	}

	asOf := timeNow()
	if v := ctx.Query("as_of"); v != "" {
		parsed, err := parseDate(v)
		if err != nil {
			respondErr(ctx, c.log, apierrors.Validation, "taric_resolve", "invalid as_of date", err)
			return
		}
		asOf = parsed
	}

	result, err := c.resolver.Resolve(ctx.Request.Context(), goodsCode, origin, asOf, additionalCode)
	if err != nil {
		respondErr(ctx, c.log, apierrors.Upstream, "taric_resolve", "taric resolution failed", err)
		return
	}
	ctx.JSON(http.StatusOK, result)
}
