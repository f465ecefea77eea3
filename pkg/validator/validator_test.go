package validator

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
)

type applyPayload struct {
	JobID       string `json:"jobId" validate:"required,uuid"`
	CoverLetter string `json:"coverLetter" validate:"notblank"`
	ResumeURL   string `form:"resumeUrl" validate:"required,url"`
}

func TestValidateStructSuccess(t *testing.T) {
	payload := applyPayload{
		JobID:       "0d6c3f4e-8f0b-4a57-9d1e-63e1f0a5b1c2",
		CoverLetter: "I have shipped three job boards.",
		ResumeURL:   "https://files.example.com/resumes/cv.pdf",
	}

	require.NoError(t, ValidateStruct(payload))
}

func TestValidateStructFailuresUseSerializedNames(t *testing.T) {
	payload := applyPayload{
		JobID:       "not-a-uuid",
		CoverLetter: "   ",
		ResumeURL:   "",
	}

	err := ValidateStruct(payload)
	require.Error(t, err)

	vErrs, ok := err.(ValidationErrors)
	require.True(t, ok, "expected ValidationErrors, got %T", err)
	require.Len(t, vErrs, 3)

	fields := map[string]string{}
	for _, v := range vErrs {
		fields[v.Field] = v.Tag
	}
	require.Equal(t, "uuid", fields["jobId"])
	require.Equal(t, "notblank", fields["coverLetter"])
	require.Equal(t, "required", fields["resumeUrl"])
}

func TestValidateVar(t *testing.T) {
	require.NoError(t, ValidateVar("applied", "oneof=applied shortlisted rejected hired"))
	require.Error(t, ValidateVar("archived", "oneof=applied shortlisted rejected hired"))
}

func TestRegisterValidation(t *testing.T) {
	require.NoError(t, RegisterValidation("is_employer", func(fl validator.FieldLevel) bool {
		return fl.Field().String() == "employer"
	}))

	type rolePayload struct {
		Role string `json:"role" validate:"is_employer"`
	}

	require.NoError(t, ValidateStruct(rolePayload{Role: "employer"}))
	require.Error(t, ValidateStruct(rolePayload{Role: "applicant"}))
}
