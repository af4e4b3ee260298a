package types

import "time"

// Patient holds a patient profile. HealthCardID and QRCodeID are
// identity anchors: assigned at registration and never reassigned.
// The otp_* columns hold the single live doctor-visit challenge; at
// most one is live per patient and it is bound to one requesting
// doctor via OTPRequestedBy (a user ID).
type Patient struct {
	ID                  string     `json:"id" db:"id"`
	UserID              string     `json:"userId" db:"user_id"`
	FullName            string     `json:"fullName" db:"full_name"`
	HealthCardID        string     `json:"healthCardId" db:"health_card_id"`
	QRCodeID            string     `json:"qrCodeId" db:"qr_code_id"`
	BloodGroup          string     `json:"bloodGroup" db:"blood_group"`
	DOB                 *time.Time `json:"dob" db:"dob"`
	PhoneNumber         string     `json:"phoneNumber" db:"phone_number"`
	RelativePhoneNumber string     `json:"relativePhoneNumber" db:"relative_phone_number"`
	Address             string     `json:"address" db:"address"`
	Allergies           []string   `json:"allergies" db:"allergies"`
	OTPCode             string     `json:"-" db:"otp_code"`
	OTPExpires          *time.Time `json:"-" db:"otp_expires"`
	OTPVerified         bool       `json:"-" db:"otp_verified"`
	OTPRequestedBy      string     `json:"-" db:"otp_requested_by"`
	CreatedAt           time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt           time.Time  `json:"updatedAt" db:"updated_at"`
}

// ProfileComplete reports whether the profile carries the minimum data
// doctors expect before recording a visit. Blood group alone gates it.
func (p *Patient) ProfileComplete() bool {
	return p.BloodGroup != ""
}

// Doctor holds a doctor profile
type Doctor struct {
	ID             string    `json:"id" db:"id"`
	UserID         string    `json:"userId" db:"user_id"`
	FullName       string    `json:"fullName" db:"full_name"`
	Specialization string    `json:"specialization" db:"specialization"`
	HospitalName   string    `json:"hospitalName" db:"hospital_name"`
	CreatedAt      time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time `json:"updatedAt" db:"updated_at"`
}

// MedicalRecord is one doctor-authored visit entry. Records are
// append-only: created once, never mutated or deleted.
type MedicalRecord struct {
	ID         string    `json:"id" db:"id"`
	PatientID  string    `json:"patientId" db:"patient_id"`
	DoctorID   string    `json:"doctorId" db:"doctor_id"`
	Diagnosis  string    `json:"diagnosis" db:"diagnosis"`
	Notes      string    `json:"notes" db:"notes"`
	Treatments []string  `json:"treatments" db:"treatments"`
	VisitDate  time.Time `json:"visitDate" db:"visit_date"`
	CreatedAt  time.Time `json:"createdAt" db:"created_at"`

	// Doctor is populated on history reads from the doctors table.
	Doctor *Doctor `json:"doctor,omitempty" db:"-"`
}

// OTPRequest asks for a visit code to be mailed to the patient
type OTPRequest struct {
	HealthCardID string `json:"healthCardId" binding:"required"`
}

// OTPVerifyRequest submits the patient-relayed visit code
type OTPVerifyRequest struct {
	HealthCardID string `json:"healthCardId" binding:"required"`
	OTP          string `json:"otp" binding:"required"`
}

// OTPResponse is the {success, message} envelope of the OTP endpoints
type OTPResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// AddRecordRequest carries a new visit record. Treatments accepts
// either a JSON list or a single comma-joined string.
type AddRecordRequest struct {
	HealthCardID string     `json:"healthCardId" binding:"required"`
	Diagnosis    string     `json:"diagnosis" binding:"required"`
	Notes        string     `json:"notes"`
	Treatments   StringList `json:"treatments"`
	VisitDate    *time.Time `json:"visitDate"`
}

// PatientPatch is the alias-normalized profile update payload. Pointer
// fields distinguish "absent" from "set to empty" (legacy clients send
// phone or phoneNumber, relativePhone or relativePhoneNumber).
type PatientPatch struct {
	DOB                 *string     `json:"dob"`
	BloodGroup          *string     `json:"bloodGroup"`
	Allergies           *StringList `json:"allergies"`
	Phone               *string     `json:"phone"`
	PhoneNumber         *string     `json:"phoneNumber"`
	RelativePhone       *string     `json:"relativePhone"`
	RelativePhoneNumber *string     `json:"relativePhoneNumber"`
	Address             *string     `json:"address"`
}

// ResolvedPhone returns the canonical phone value, preferring phoneNumber
func (p *PatientPatch) ResolvedPhone() (string, bool) {
	if p.PhoneNumber != nil {
		return *p.PhoneNumber, true
	}
	if p.Phone != nil {
		return *p.Phone, true
	}
	return "", false
}

// ResolvedRelativePhone returns the canonical relative phone value
func (p *PatientPatch) ResolvedRelativePhone() (string, bool) {
	if p.RelativePhoneNumber != nil {
		return *p.RelativePhoneNumber, true
	}
	if p.RelativePhone != nil {
		return *p.RelativePhone, true
	}
	return "", false
}

// DoctorUpdate is the doctor self-service profile payload
type DoctorUpdate struct {
	FullName       *string `json:"fullName"`
	Specialization *string `json:"specialization"`
	HospitalName   *string `json:"hospitalName"`
}

// PatientView is the doctor- and patient-facing profile projection
type PatientView struct {
	CardID          string           `json:"cardId"`
	HealthCardID    string           `json:"healthCardId"`
	QRCodeID        string           `json:"qrCodeId"`
	FullName        string           `json:"fullName"`
	BloodGroup      string           `json:"bloodGroup"`
	DOB             *time.Time       `json:"dob"`
	Phone           string           `json:"phone"`
	RelativePhone   string           `json:"relativePhone"`
	Address         string           `json:"address,omitempty"`
	Allergies       []string         `json:"allergies"`
	ProfileComplete bool             `json:"profileComplete"`
	History         []*MedicalRecord `json:"history,omitempty"`
}

// EmergencyView is the unauthenticated first-responder projection
type EmergencyView struct {
	CardID              string           `json:"cardId"`
	QRCodeID            string           `json:"qrCodeId"`
	FullName            string           `json:"fullName"`
	BloodGroup          string           `json:"bloodGroup"`
	DOB                 *time.Time       `json:"dob"`
	PhoneNumber         string           `json:"phoneNumber"`
	RelativePhoneNumber string           `json:"relativePhoneNumber"`
	Allergies           []string         `json:"allergies"`
	History             []*MedicalRecord `json:"history"`
}

// NewPatientView builds the profile projection from a patient row
func NewPatientView(p *Patient, history []*MedicalRecord) *PatientView {
	return &PatientView{
		CardID:          p.HealthCardID,
		HealthCardID:    p.HealthCardID,
		QRCodeID:        qrOrCard(p),
		FullName:        p.FullName,
		BloodGroup:      p.BloodGroup,
		DOB:             p.DOB,
		Phone:           p.PhoneNumber,
		RelativePhone:   p.RelativePhoneNumber,
		Address:         p.Address,
		Allergies:       nonNil(p.Allergies),
		ProfileComplete: p.ProfileComplete(),
		History:         history,
	}
}

// NewEmergencyView builds the first-responder projection
func NewEmergencyView(p *Patient, history []*MedicalRecord) *EmergencyView {
	if history == nil {
		history = []*MedicalRecord{}
	}
	return &EmergencyView{
		CardID:              p.HealthCardID,
		QRCodeID:            qrOrCard(p),
		FullName:            p.FullName,
		BloodGroup:          p.BloodGroup,
		DOB:                 p.DOB,
		PhoneNumber:         p.PhoneNumber,
		RelativePhoneNumber: p.RelativePhoneNumber,
		Allergies:           nonNil(p.Allergies),
		History:             history,
	}
}

func qrOrCard(p *Patient) string {
	if p.QRCodeID != "" {
		return p.QRCodeID
	}
	return p.HealthCardID
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
