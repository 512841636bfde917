package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tienbob/Tubex-sub002/internal/commerce/entity"
	"github.com/tienbob/Tubex-sub002/internal/commerce/repository"
	"github.com/tienbob/Tubex-sub002/internal/shared/apperr"
	"github.com/tienbob/Tubex-sub002/internal/tenant"
	"go.uber.org/zap"
)

// OrderService 订单库存占用
type OrderService struct {
	repos     *repository.Repositories
	inventory *InventoryService
	logger    *zap.Logger
	now       func() time.Time
}

// NewOrderService 创建订单服务
func NewOrderService(repos *repository.Repositories, inventory *InventoryService, logger *zap.Logger) *OrderService {
	return &OrderService{repos: repos, inventory: inventory, logger: logger, now: time.Now}
}

// PlaceOrderRequest 下单请求
type PlaceOrderRequest struct {
	SupplierID  string             `json:"supplier_id" binding:"required"`
	WarehouseID string             `json:"warehouse_id" binding:"required"`
	Notes       string             `json:"notes"`
	Items       []OrderItemRequest `json:"items" binding:"required,min=1,dive"`
}

// OrderItemRequest 订单行
type OrderItemRequest struct {
	ProductID string          `json:"product_id" binding:"required"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// PlaceOrder creates the order and decrements the supplier's stock in the fulfilling
// warehouse for every line inside one transaction.
func (s *OrderService) PlaceOrder(ctx context.Context, tc *tenant.Context, req PlaceOrderRequest) (*entity.Order, error) {
	if len(req.Items) == 0 {
		return nil, apperr.Validation("order has no items")
	}
	warehouse, err := s.repos.Warehouse.FindByID(ctx, req.WarehouseID)
	if err != nil {
		return nil, err
	}
	if warehouse.CompanyID != req.SupplierID {
		return nil, apperr.Validation("warehouse %s does not belong to supplier %s", req.WarehouseID, req.SupplierID)
	}
	if warehouse.Status != entity.WarehouseStatusActive {
		return nil, apperr.Validation("warehouse %s is %s", warehouse.ID, warehouse.Status)
	}

	lines, err := mergeOrderLines(req.Items)
	if err != nil {
		return nil, err
	}

	orderID := uuid.New().String()
	order := &entity.Order{
		ID:          orderID,
		CompanyID:   tc.CompanyID(),
		SupplierID:  req.SupplierID,
		WarehouseID: req.WarehouseID,
		OrderNumber: fmt.Sprintf("SO-%s-%s", s.now().Format("20060102"), orderID[:8]),
		Status:      entity.OrderStatusConfirmed,
		Notes:       req.Notes,
		CreatedBy:   tc.Principal.UserID,
	}
	total := decimal.Zero
	for _, line := range lines {
		order.Items = append(order.Items, entity.OrderItem{
			ID:        uuid.New().String(),
			OrderID:   orderID,
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
		})
		total = total.Add(line.Quantity.Mul(line.UnitPrice))
	}
	order.TotalAmount = roundQty(total)

	var events []*ReorderEvent
	err = s.repos.RunInTransaction(ctx, func(tx *repository.Repositories) error {
		// 先整体校验（共享锁），再逐行扣减（排他锁）
		for _, line := range lines {
			if _, err := s.inventory.ValidateStockAvailability(ctx, req.SupplierID, line.ProductID, req.WarehouseID, line.Quantity, tx); err != nil {
				return err
			}
		}
		if err := tx.Order.Create(ctx, order); err != nil {
			return err
		}
		for _, line := range lines {
			evt, err := s.moveStock(ctx, tx, order, line.ProductID, line.Quantity.Neg(), entity.TxTypeOrderOut)
			if err != nil {
				return err
			}
			events = append(events, evt)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.inventory.notify(ctx, events...)
	s.logger.Info("order placed",
		zap.String("order_id", order.ID),
		zap.String("company_id", order.CompanyID),
		zap.String("supplier_id", order.SupplierID),
		zap.Int("lines", len(order.Items)),
	)
	return order, nil
}

// CancelOrder restores every line's quantity to the fulfilling warehouse and marks the
// order cancelled. Cancelling twice is a validation error.
func (s *OrderService) CancelOrder(ctx context.Context, tc *tenant.Context, orderID string) (*entity.Order, error) {
	var (
		order  *entity.Order
		events []*ReorderEvent
	)
	err := s.repos.RunInTransaction(ctx, func(tx *repository.Repositories) error {
		var err error
		order, err = tx.Order.FindByID(ctx, orderID, repository.LockUpdate)
		if err != nil {
			return err
		}
		if order.CompanyID != tc.CompanyID() && order.SupplierID != tc.CompanyID() {
			return apperr.AccessDenied("order %s is not associated with company %s", orderID, tc.CompanyID())
		}
		switch order.Status {
		case entity.OrderStatusCancelled:
			return apperr.Validation("order %s is already cancelled", orderID)
		case entity.OrderStatusFulfilled:
			return apperr.Validation("order %s is already fulfilled", orderID)
		}

		items := append([]entity.OrderItem(nil), order.Items...)
		sort.Slice(items, func(i, j int) bool { return items[i].ProductID < items[j].ProductID })
		for _, item := range items {
			evt, err := s.moveStock(ctx, tx, order, item.ProductID, item.Quantity, entity.TxTypeOrderCancelIn)
			if err != nil {
				return err
			}
			events = append(events, evt)
		}

		now := s.now()
		if err := tx.Order.MarkCancelled(ctx, order.ID, now); err != nil {
			return err
		}
		order.Status = entity.OrderStatusCancelled
		order.CancelledAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.inventory.notify(ctx, events...)
	return order, nil
}

// GetOrder 读取订单
func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*entity.Order, error) {
	return s.repos.Order.FindByID(ctx, orderID, repository.LockNone)
}

func (s *OrderService) moveStock(ctx context.Context, tx *repository.Repositories, order *entity.Order, productID string, delta decimal.Decimal, txType string) (*ReorderEvent, error) {
	inv, err := tx.Inventory.FindByKey(ctx, repository.InventoryKey{
		ProductID:   productID,
		WarehouseID: order.WarehouseID,
		CompanyID:   order.SupplierID,
	}, repository.LockUpdate)
	if err != nil {
		return nil, err
	}
	if delta.IsNegative() && inv.Quantity.LessThan(delta.Abs()) {
		return nil, apperr.InsufficientStock(inv.Quantity, delta.Abs())
	}
	return s.inventory.applyDelta(ctx, tx, inv, delta, movement{
		txType:  txType,
		reason:  "order " + order.OrderNumber,
		refType: "order",
		refID:   order.ID,
		userID:  order.CreatedBy,
	})
}

// mergeOrderLines 合并同一产品的订单行并按产品排序，保证加锁顺序一致
func mergeOrderLines(items []OrderItemRequest) ([]OrderItemRequest, error) {
	byProduct := make(map[string]*OrderItemRequest, len(items))
	for _, item := range items {
		qty := roundQty(item.Quantity)
		if !qty.IsPositive() {
			return nil, apperr.Validation("quantity of product %s must be positive", item.ProductID)
		}
		if item.UnitPrice.IsNegative() {
			return nil, apperr.Validation("unit price of product %s must not be negative", item.ProductID)
		}
		if existing, ok := byProduct[item.ProductID]; ok {
			if !existing.UnitPrice.Equal(item.UnitPrice) {
				return nil, apperr.Validation("product %s listed twice with different prices", item.ProductID)
			}
			existing.Quantity = existing.Quantity.Add(qty)
			continue
		}
		byProduct[item.ProductID] = &OrderItemRequest{ProductID: item.ProductID, Quantity: qty, UnitPrice: roundQty(item.UnitPrice)}
	}

	lines := make([]OrderItemRequest, 0, len(byProduct))
	for _, line := range byProduct {
		lines = append(lines, *line)
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })
	return lines, nil
}
