package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/watch_store/pkg/logging"
	"github.com/Skotchmaster/watch_store/services/cart/internal/models"
	"github.com/Skotchmaster/watch_store/services/cart/internal/repo"
	"github.com/Skotchmaster/watch_store/services/cart/internal/transport"
)

var (
	ErrValidation = errors.New("validation")
	ErrNotFound   = errors.New("not found")
)

const maxQuantity = 1000

type CartService struct {
	Repo *repo.GormRepo
}

func (s *CartService) GetCart(ctx context.Context, userID uuid.UUID) (*transport.CartResponse, error) {
	lines, err := s.Repo.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	resp := &transport.CartResponse{Items: make([]transport.CartLine, 0, len(lines))}
	for _, ln := range lines {
		line := transport.CartLine{
			ID:        ln.Item.ID,
			ProductID: ln.Item.ProductID,
			Quantity:  ln.Item.Quantity,
		}
		if p := ln.Product; p != nil {
			line.Name = p.Name
			line.Price = p.Price
			line.Stock = p.Stock
			line.Available = p.IsActive && p.Stock >= ln.Item.Quantity
			if p.IsActive {
				line.Subtotal = p.Price * ln.Item.Quantity
			}
		}
		resp.Items = append(resp.Items, line)
		resp.Total += line.Subtotal
		resp.ItemCount += line.Quantity
	}
	return resp, nil
}

func validQuantity(qty int64) error {
	if qty < 1 {
		return fmt.Errorf("%w: quantity must be at least 1", ErrValidation)
	}
	if qty > maxQuantity {
		return fmt.Errorf("%w: quantity must not exceed %d", ErrValidation, maxQuantity)
	}
	return nil
}

func (s *CartService) purchasable(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	p, err := s.Repo.GetProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: product %s", ErrNotFound, productID)
		}
		return nil, err
	}
	if !p.IsActive {
		return nil, fmt.Errorf("%w: product %q is not available", ErrValidation, p.Name)
	}
	return p, nil
}

func (s *CartService) AddToCart(ctx context.Context, userID, productID uuid.UUID, qty int64) (*models.CartItem, error) {
	if productID == uuid.Nil {
		return nil, fmt.Errorf("%w: product_id required", ErrValidation)
	}
	if err := validQuantity(qty); err != nil {
		return nil, err
	}

	p, err := s.purchasable(ctx, productID)
	if err != nil {
		return nil, err
	}

	item, err := s.Repo.AddToCart(ctx, userID, productID, qty, p.Stock)
	if errors.Is(err, repo.ErrStockExceeded) {
		return nil, fmt.Errorf("%w: only %d of %q in stock", ErrValidation, p.Stock, p.Name)
	}
	if err != nil {
		return nil, err
	}

	logging.FromContext(ctx).Debug("cart_item_added", "user_id", userID, "product_id", productID, "quantity", item.Quantity)
	return item, nil
}

func (s *CartService) UpdateCartItem(ctx context.Context, userID, itemID uuid.UUID, qty int64) (*models.CartItem, error) {
	if err := validQuantity(qty); err != nil {
		return nil, err
	}

	item, err := s.Repo.GetItem(ctx, userID, itemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: cart item %s", ErrNotFound, itemID)
		}
		return nil, err
	}

	p, err := s.purchasable(ctx, item.ProductID)
	if err != nil {
		return nil, err
	}
	if qty > p.Stock {
		return nil, fmt.Errorf("%w: only %d of %q in stock", ErrValidation, p.Stock, p.Name)
	}

	if err := s.Repo.UpdateQuantity(ctx, userID, itemID, qty); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: cart item %s", ErrNotFound, itemID)
		}
		return nil, err
	}
	item.Quantity = qty
	return item, nil
}

func (s *CartService) RemoveFromCart(ctx context.Context, userID, itemID uuid.UUID) error {
	err := s.Repo.DeleteItem(ctx, userID, itemID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: cart item %s", ErrNotFound, itemID)
	}
	return err
}

func (s *CartService) ClearCart(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.Repo.ClearCart(ctx, userID)
}

func (s *CartService) Count(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.Repo.CountItems(ctx, userID)
}
