// Package catalog 商品目录：前台只看上架商品，后台负责增改和下架。
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"shop/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Service struct {
	db  *gorm.DB
	log *slog.Logger
}

func NewService(db *gorm.DB, log *slog.Logger) *Service {
	return &Service{db: db, log: log}
}

// ProductInput 创建商品的参数。
type ProductInput struct {
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int64           `json:"stock_quantity"`
	Category      string          `json:"category"`
	ImageURL      string          `json:"image_url"`
}

// ProductPatch 部分更新，nil 字段保持不变。
type ProductPatch struct {
	Name          *string          `json:"name"`
	Description   *string          `json:"description"`
	Price         *decimal.Decimal `json:"price"`
	StockQuantity *int64           `json:"stock_quantity"`
	Category      *string          `json:"category"`
	ImageURL      *string          `json:"image_url"`
	IsActive      *bool            `json:"is_active"`
}

func validateName(name string) error {
	if len(strings.TrimSpace(name)) < 2 {
		return fmt.Errorf("%w: product name must be at least 2 characters", model.ErrInvalidInput)
	}
	return nil
}

func validatePrice(price decimal.Decimal) error {
	if !price.IsPositive() {
		return fmt.Errorf("%w: price must be greater than 0", model.ErrInvalidInput)
	}
	return nil
}

func validateStock(stock int64) error {
	if stock < 0 {
		return fmt.Errorf("%w: stock_quantity cannot be negative", model.ErrInvalidInput)
	}
	return nil
}

// ListActive 前台商品列表。
func (s *Service) ListActive(ctx context.Context) ([]model.Product, error) {
	var list []model.Product
	if err := s.db.WithContext(ctx).Where("is_active = ?", true).Order("id ASC").Find(&list).Error; err != nil {
		return nil, model.StorageError("list products", err)
	}
	return list, nil
}

// ListAll 后台列表，包含已下架（但未删除）的商品。
func (s *Service) ListAll(ctx context.Context) ([]model.Product, error) {
	var list []model.Product
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&list).Error; err != nil {
		return nil, model.StorageError("list products", err)
	}
	return list, nil
}

// Get 只返回上架商品。
func (s *Service) Get(ctx context.Context, id uint) (*model.Product, error) {
	p, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return nil, model.ErrProductNotFound
	}
	return p, nil
}

func (s *Service) load(ctx context.Context, id uint) (*model.Product, error) {
	var p model.Product
	err := s.db.WithContext(ctx).First(&p, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, model.ErrProductNotFound
	}
	if err != nil {
		return nil, model.StorageError("load product", err)
	}
	return &p, nil
}

func (s *Service) Create(ctx context.Context, in ProductInput) (*model.Product, error) {
	if err := validateName(in.Name); err != nil {
		return nil, err
	}
	if err := validatePrice(in.Price); err != nil {
		return nil, err
	}
	if err := validateStock(in.StockQuantity); err != nil {
		return nil, err
	}

	p := &model.Product{
		Name:          strings.TrimSpace(in.Name),
		Description:   in.Description,
		Price:         in.Price.Round(2),
		StockQuantity: in.StockQuantity,
		Category:      in.Category,
		ImageURL:      in.ImageURL,
		IsActive:      true,
	}
	if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
		return nil, model.StorageError("create product", err)
	}
	s.log.InfoContext(ctx, "product created",
		slog.Uint64("product_id", uint64(p.ID)), slog.String("name", p.Name), slog.Int64("stock", p.StockQuantity))
	return p, nil
}

// Update 后台改商品。直接设置 stock_quantity 属于盘点补货，不经过下单扣减路径。
func (s *Service) Update(ctx context.Context, id uint, patch ProductPatch) (*model.Product, error) {
	changes := map[string]any{}
	if patch.Name != nil {
		if err := validateName(*patch.Name); err != nil {
			return nil, err
		}
		changes["name"] = strings.TrimSpace(*patch.Name)
	}
	if patch.Description != nil {
		changes["description"] = *patch.Description
	}
	if patch.Price != nil {
		if err := validatePrice(*patch.Price); err != nil {
			return nil, err
		}
		changes["price"] = patch.Price.Round(2)
	}
	if patch.StockQuantity != nil {
		if err := validateStock(*patch.StockQuantity); err != nil {
			return nil, err
		}
		changes["stock_quantity"] = *patch.StockQuantity
	}
	if patch.Category != nil {
		changes["category"] = *patch.Category
	}
	if patch.ImageURL != nil {
		changes["image_url"] = *patch.ImageURL
	}
	if patch.IsActive != nil {
		changes["is_active"] = *patch.IsActive
	}

	if _, err := s.load(ctx, id); err != nil {
		return nil, err
	}
	if len(changes) > 0 {
		if err := s.db.WithContext(ctx).Model(&model.Product{}).Where("id = ?", id).Updates(changes).Error; err != nil {
			return nil, model.StorageError("update product", err)
		}
		s.log.InfoContext(ctx, "product updated", slog.Uint64("product_id", uint64(id)), slog.Int("fields", len(changes)))
	}
	return s.load(ctx, id)
}

// Delete 软删除并下架。历史订单只引用快照，不受影响。
func (s *Service) Delete(ctx context.Context, id uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Product{}).Where("id = ?", id).Update("is_active", false)
		if res.Error != nil {
			return model.StorageError("deactivate product", res.Error)
		}
		if res.RowsAffected == 0 {
			return model.ErrProductNotFound
		}
		if err := tx.Delete(&model.Product{}, id).Error; err != nil {
			return model.StorageError("delete product", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.log.InfoContext(ctx, "product deleted", slog.Uint64("product_id", uint64(id)))
	return nil
}
