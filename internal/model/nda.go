package model

import (
	"strings"
	"time"
)

// NDASignature records a viewer accepting a listing's NDA
type NDASignature struct {
	ID        string    `json:"id"`
	ProductID string    `json:"product_id"`
	UserID    string    `json:"user_id"`
	FullName  string    `json:"full_name"`
	SignedOn  time.Time `json:"signed_on"`
}

// SignNDARequest accepts a listing NDA
type SignNDARequest struct {
	FullName string `json:"full_name" validate:"required,max=120"`
	Accept   bool   `json:"accept"`
}

// Validate validates the sign NDA request
func (r *SignNDARequest) Validate() []FieldError {
	r.FullName = strings.TrimSpace(r.FullName)
	errors := validateStruct(r)
	if !r.Accept {
		errors = append(errors, FieldError{Field: "accept", Message: "the NDA terms must be accepted"})
	}
	return errors
}
