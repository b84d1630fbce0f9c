package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User types carried in JWT claims
const (
	UserTypeAgent = "agent"
	UserTypeAdmin = "admin"
)

type Agent struct {
	ID           primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	FullName     string             `json:"fullName" bson:"fullName"`
	Email        string             `json:"email" bson:"email"`
	PhoneNumber  string             `json:"phoneNumber" bson:"phoneNumber"`
	Password     string             `json:"-" bson:"password"`
	UserType     string             `json:"userType" bson:"userType"` // "agent", "admin"
	MomoNumber   string             `json:"momoNumber" bson:"momoNumber"`
	ReferralCode string             `json:"referralCode,omitempty" bson:"referralCode,omitempty"`
	Active       bool               `json:"active" bson:"active"`

	// Denormalized balance caches. The commission and wallet transaction logs
	// are the source of truth; these are recomputed after every mutation and
	// cross-checked by the integrity auditor.
	TotalCommissions float64 `json:"totalCommissions" bson:"totalCommissions"`
	TotalPaidOut     float64 `json:"totalPaidOut" bson:"totalPaidOut"`
	WalletBalance    float64 `json:"walletBalance" bson:"walletBalance"`

	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// Response model
type Response struct {
	Status  int         `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}
