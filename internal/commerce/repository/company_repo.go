package repository

import (
	"context"

	"github.com/tienbob/Tubex-sub002/internal/commerce/entity"
	"gorm.io/gorm"
)

// CompanyRepository 公司仓库
type CompanyRepository struct {
	db *gorm.DB
}

func NewCompanyRepository(db *gorm.DB) *CompanyRepository {
	return &CompanyRepository{db: db}
}

// FindByID 根据ID查找公司
func (r *CompanyRepository) FindByID(ctx context.Context, id string) (*entity.Company, error) {
	var company entity.Company
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&company).Error
	if err != nil {
		return nil, translate(err, "company")
	}
	return &company, nil
}

// ListIDs 返回所有公司ID
func (r *CompanyRepository) ListIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&entity.Company{}).Order("id").Pluck("id", &ids).Error
	return ids, translate(err, "company")
}
