package models

import (
	"fmt"
	"time"

	dErrors "kycdesk/pkg/domain-errors"
)

// Step is a stage of the client journey.
type Step string

const (
	StepCodeIssued         Step = "code_issued"
	StepAuthenticated      Step = "authenticated"
	StepPersonalInfoSaved  Step = "personal_info_saved"
	StepIDUploaded         Step = "id_uploaded"
	StepAddressUploaded    Step = "address_uploaded"
	StepBiometricsUploaded Step = "biometrics_uploaded"
	StepFinalized          Step = "finalized"
)

// Journey lists the steps in the only order they may complete.
var Journey = []Step{
	StepCodeIssued,
	StepAuthenticated,
	StepPersonalInfoSaved,
	StepIDUploaded,
	StepAddressUploaded,
	StepBiometricsUploaded,
	StepFinalized,
}

var stepLabels = map[Step]string{
	StepAuthenticated:      "verification code authentication",
	StepPersonalInfoSaved:  "personal information",
	StepIDUploaded:         "ID document upload",
	StepAddressUploaded:    "address proof upload",
	StepBiometricsUploaded: "face verification upload",
}

// Required reports whether flags make step part of this client's journey.
func (f DocumentFlags) Required(step Step) bool {
	switch step {
	case StepPersonalInfoSaved:
		return f.DOB
	case StepIDUploaded:
		return f.IDDoc
	case StepAddressUploaded:
		return f.AddressDoc
	case StepBiometricsUploaded:
		return f.Images
	default:
		return true
	}
}

// completedAt returns the completion time of step, nil when not done.
func (r *ClientRecord) completedAt(step Step) *time.Time {
	switch step {
	case StepCodeIssued:
		return &r.CreatedAt
	case StepAuthenticated:
		return r.AuthenticatedAt
	case StepPersonalInfoSaved:
		return r.PersonalInfoSavedAt
	case StepIDUploaded:
		return r.IDUploadedAt
	case StepAddressUploaded:
		return r.AddressUploadedAt
	case StepBiometricsUploaded:
		return r.BiometricsUploadedAt
	case StepFinalized:
		return r.SubmittedAt
	}
	return nil
}

// Completed reports whether step has been recorded.
func (r *ClientRecord) Completed(step Step) bool {
	return r.completedAt(step) != nil
}

// MarkStep records step as completed at now.
func (r *ClientRecord) MarkStep(step Step, now time.Time) {
	t := now
	switch step {
	case StepAuthenticated:
		r.AuthenticatedAt = &t
	case StepPersonalInfoSaved:
		r.PersonalInfoSavedAt = &t
	case StepIDUploaded:
		r.IDUploadedAt = &t
	case StepAddressUploaded:
		r.AddressUploadedAt = &t
	case StepBiometricsUploaded:
		r.BiometricsUploadedAt = &t
	case StepFinalized:
		r.SubmittedAt = &t
	}
	r.UpdatedAt = now
}

// CurrentStep is the furthest step reached in journey order.
func (r *ClientRecord) CurrentStep() Step {
	current := StepCodeIssued
	for _, s := range Journey {
		if r.Completed(s) {
			current = s
		}
	}
	return current
}

// NextStep is the first required step not yet completed, or StepFinalized.
func (r *ClientRecord) NextStep(flags DocumentFlags) Step {
	for _, s := range Journey {
		if flags.Required(s) && !r.Completed(s) {
			return s
		}
	}
	return StepFinalized
}

// CanEnter guards a transition into step: every earlier required step must be
// complete and the journey must not be finalized. Steps not required by flags
// are rejected outright.
func (r *ClientRecord) CanEnter(step Step, flags DocumentFlags) error {
	if r.Completed(StepFinalized) {
		return dErrors.New(dErrors.CodeAlreadyUsed, MsgCodeAlreadyUsed)
	}
	if !flags.Required(step) {
		return dErrors.New(dErrors.CodePreconditionFailed,
			fmt.Sprintf("%s is not requested for this verification", stepLabels[step])).
			WithDetails(map[string]string{"step": string(step)})
	}
	for _, s := range Journey {
		if s == step {
			return nil
		}
		if flags.Required(s) && !r.Completed(s) {
			return dErrors.New(dErrors.CodePreconditionFailed,
				fmt.Sprintf("%s must be completed first", stepLabels[s])).
				WithDetails(map[string]string{"step": string(step), "missing_step": string(s)})
		}
	}
	return dErrors.New(dErrors.CodeInternal, "unknown workflow step")
}
