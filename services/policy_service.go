package services

import (
	"attestation-backend/models"

	"gorm.io/gorm"
)

// PolicyService manages consent policy templates.
type PolicyService struct {
	DB *gorm.DB
}

func NewPolicyService(db *gorm.DB) *PolicyService {
	return &PolicyService{DB: db}
}

func (s *PolicyService) Create(policy *models.Policy) error {
	if policy == nil {
		return gorm.ErrInvalidData
	}
	if policy.Version == "" {
		policy.Version = "1.0"
	}
	return s.DB.Create(policy).Error
}

func (s *PolicyService) List() ([]models.Policy, error) {
	var out []models.Policy
	err := s.DB.Order("policy_id desc").Find(&out).Error
	return out, err
}

func (s *PolicyService) GetByID(id uint) (models.Policy, error) {
	var p models.Policy
	err := s.DB.First(&p, "policy_id = ?", id).Error
	return p, err
}

// Latest returns the newest template; the check-in form starts from it when
// staff do not supply policy text themselves.
func (s *PolicyService) Latest() (models.Policy, error) {
	var p models.Policy
	err := s.DB.Order("policy_id desc").First(&p).Error
	return p, err
}

func (s *PolicyService) Delete(id uint) error {
	return s.DB.Delete(&models.Policy{}, "policy_id = ?", id).Error
}
