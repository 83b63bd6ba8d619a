package handler

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"kycdesk/internal/kyc/models"
	dErrors "kycdesk/pkg/domain-errors"
)

var validate = newValidator()

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// GenerateOTPRequest is the body of POST /admin/generateOTP.
type GenerateOTPRequest struct {
	ClientName string `json:"clientName" validate:"required,max=200"`
	IDDoc      bool   `json:"idDoc"`
	AddressDoc bool   `json:"addressDoc"`
	Images     bool   `json:"images"`
	DOB        bool   `json:"DOB"`
	FolderLink string `json:"folderLink" validate:"omitempty,max=2048"`
}

func (r *GenerateOTPRequest) Validate() error {
	r.ClientName = strings.TrimSpace(r.ClientName)
	r.FolderLink = strings.TrimSpace(r.FolderLink)
	if err := validate.Struct(r); err != nil {
		if failedOn(err, "ClientName", "required") {
			return dErrors.New(dErrors.CodeBadRequest, "Client Name is missing")
		}
		return validationError(err)
	}
	return nil
}

func (r *GenerateOTPRequest) Flags() models.DocumentFlags {
	return models.DocumentFlags{IDDoc: r.IDDoc, AddressDoc: r.AddressDoc, Images: r.Images, DOB: r.DOB}
}

// AuthenticateRequest is the body of POST /client/authenticateOTP.
type AuthenticateRequest struct {
	OTP string `json:"otp" validate:"required,max=64"`
}

func (r *AuthenticateRequest) Validate() error {
	r.OTP = strings.TrimSpace(r.OTP)
	if err := validate.Struct(r); err != nil {
		if failedOn(err, "OTP", "required") {
			return dErrors.New(dErrors.CodeBadRequest, "Verification Code Required")
		}
		return validationError(err)
	}
	return nil
}

// ReauthenticateRequest is the body of POST /client/auth.
type ReauthenticateRequest struct {
	OTP string `json:"otp" validate:"required,max=64"`
}

func (r *ReauthenticateRequest) Validate() error {
	r.OTP = strings.TrimSpace(r.OTP)
	if err := validate.Struct(r); err != nil {
		return dErrors.New(dErrors.CodeBadRequest, "Bad Request")
	}
	return nil
}

// PersonalInfoRequest is the body of POST /client/save-personal-info.
type PersonalInfoRequest struct {
	OTPID   string `json:"otp_id" validate:"omitempty,uuid"`
	DOB     string `json:"dob" validate:"required,max=32"`
	PhoneNo string `json:"phoneNo" validate:"required,max=32"`
	NIN     string `json:"NIN" validate:"omitempty,max=32"`
}

func (r *PersonalInfoRequest) Validate() error {
	r.OTPID = strings.TrimSpace(r.OTPID)
	r.DOB = strings.TrimSpace(r.DOB)
	r.PhoneNo = strings.TrimSpace(r.PhoneNo)
	r.NIN = strings.TrimSpace(r.NIN)
	if err := validate.Struct(r); err != nil {
		return dErrors.New(dErrors.CodeBadRequest, "Bad Request")
	}
	return nil
}

// ThankYouRequest is the body of POST /client/thankyou.
type ThankYouRequest struct {
	ID string `json:"id" validate:"omitempty,uuid"`
}

func (r *ThankYouRequest) Validate() error {
	r.ID = strings.TrimSpace(r.ID)
	if err := validate.Struct(r); err != nil {
		return validationError(err)
	}
	return nil
}

// failedOn reports whether err contains a failure of tag on the named field.
func failedOn(err error, field, tag string) bool {
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return false
	}
	for _, fe := range errs {
		if fe.StructField() == field && fe.Tag() == tag {
			return true
		}
	}
	return false
}

func validationError(err error) error {
	errs, ok := err.(validator.ValidationErrors)
	if !ok || len(errs) == 0 {
		return dErrors.New(dErrors.CodeBadRequest, "Bad Request")
	}
	fields := make([]string, 0, len(errs))
	for _, fe := range errs {
		fields = append(fields, fe.Field())
	}
	return dErrors.New(dErrors.CodeValidation, "Invalid "+strings.Join(fields, ", ")).
		WithDetails(map[string][]string{"invalid": fields})
}
