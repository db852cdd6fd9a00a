package model

import (
	"strings"

	apperrors "github.com/lifeline/donation-api/pkg/errors"
)

type BloodType string

const (
	BloodTypeAPos  BloodType = "A+"
	BloodTypeANeg  BloodType = "A-"
	BloodTypeBPos  BloodType = "B+"
	BloodTypeBNeg  BloodType = "B-"
	BloodTypeABPos BloodType = "AB+"
	BloodTypeABNeg BloodType = "AB-"
	BloodTypeOPos  BloodType = "O+"
	BloodTypeONeg  BloodType = "O-"
)

// BloodTypes lists every supported ABO/Rh type in display order.
var BloodTypes = []BloodType{
	BloodTypeAPos, BloodTypeANeg,
	BloodTypeBPos, BloodTypeBNeg,
	BloodTypeABPos, BloodTypeABNeg,
	BloodTypeOPos, BloodTypeONeg,
}

func (b BloodType) Valid() bool {
	for _, t := range BloodTypes {
		if b == t {
			return true
		}
	}
	return false
}

// ParseBloodType accepts canonical values ("O+") and the legacy inventory
// keys ("O_plus", "AB_negative").
func ParseBloodType(s string) (BloodType, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.Replace(s, "_PLUS", "+", 1)
	s = strings.Replace(s, "_NEGATIVE", "-", 1)
	s = strings.Replace(s, "_MINUS", "-", 1)
	bt := BloodType(s)
	if !bt.Valid() {
		return "", apperrors.ErrInvalidBloodType
	}
	return bt, nil
}
