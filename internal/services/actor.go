package services

import "mmh_backend/internal/models"

// Actor is the authenticated caller on whose behalf a service method runs.
type Actor struct {
	UserID string
	Role   models.UserRole
}

func (a Actor) IsAdmin() bool { return a.Role == models.UserRoleAdmin }

func (a Actor) IsMedia() bool { return a.Role == models.UserRoleMedia }

func (a Actor) IsAgency() bool { return a.Role == models.UserRoleAgency }
