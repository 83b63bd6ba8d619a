package handler

import (
	"time"

	"kycdesk/internal/kyc/models"
	kycservice "kycdesk/internal/kyc/service"
)

type IssueResponse struct {
	OTPID      string `json:"otp_id"`
	OTP        string `json:"otp"`
	ExpiryDate string `json:"expiryDate"`
	FolderLink string `json:"folderLink,omitempty"`
}

func toIssueResponse(res *kycservice.IssueResult) IssueResponse {
	return IssueResponse{
		OTPID:      res.CodeID.String(),
		OTP:        res.Code,
		ExpiryDate: res.ExpiresAt.UTC().Format(time.RFC3339),
		FolderLink: res.FolderLink,
	}
}

// SessionResponse is the projection returned by both authentication routes.
type SessionResponse struct {
	OTPID      string      `json:"otp_id"`
	ClientName string      `json:"clientName"`
	IDDoc      bool        `json:"idDoc"`
	AddressDoc bool        `json:"addressDoc"`
	Images     bool        `json:"images"`
	DOB        bool        `json:"dob"`
	FolderLink string      `json:"folderLink"`
	Step       models.Step `json:"step"`
	NextStep   models.Step `json:"nextStep"`
	Token      string      `json:"token"`
}

func toSessionResponse(s *kycservice.Session) SessionResponse {
	return SessionResponse{
		OTPID:      s.CodeID.String(),
		ClientName: s.ClientName,
		IDDoc:      s.Flags.IDDoc,
		AddressDoc: s.Flags.AddressDoc,
		Images:     s.Flags.Images,
		DOB:        s.Flags.DOB,
		FolderLink: s.FolderLink,
		Step:       s.Step,
		NextStep:   s.NextStep,
		Token:      s.Token,
	}
}

type PersonalInfoResponse struct {
	OTPID      string `json:"otp_id"`
	ClientName string `json:"clientName"`
	DOB        string `json:"dob"`
	PhoneNo    string `json:"phoneNo"`
	NIN        string `json:"NIN,omitempty"`
	UpdatedAt  string `json:"updatedAt"`
}

func toPersonalInfoResponse(rec *models.ClientRecord) PersonalInfoResponse {
	return PersonalInfoResponse{
		OTPID:      rec.CodeID.String(),
		ClientName: rec.ClientName,
		DOB:        rec.DateOfBirth,
		PhoneNo:    rec.PhoneNo,
		NIN:        rec.NIN,
		UpdatedAt:  rec.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
