// Persistence models for intake sessions and incident reports. These types
// are mapped with GORM and form the core data layer of the reporting
// platform.
//
// Privacy posture: a Session carries only an opaque id (never a reused
// personal identifier), and an IncidentReport stores free-text fields as
// ciphertext. Categorical columns stay plaintext so aggregate analytics can
// run without decryption.
package domain

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// Session is one survivor's ongoing interaction with the intake flow. It is
// created on first message, mutated on every turn, and never deleted: a
// dormant session is resumed later by matching its id and replaying from the
// last checkpoint.
//
// Fields:
//   - ID: opaque session identifier ("session_" + random hex).
//   - Stage: current intake stage (see Stage constants).
//   - LastCheckpoint: name of the last completed stage, used for resumption.
//   - Progress: cumulative intake progress in [0,1], monotone non-decreasing.
//   - ConsentGiven / SafetyFlag: consent and immediate-danger markers.
//   - Language: BCP-47 tag of the conversation language ("en", "sw").
//   - Record fields: the partially filled intake record, embedded so a
//     checkpoint write persists the whole in-progress report atomically.
type Session struct {
	ID               string  `json:"session_id" gorm:"type:char(40);primaryKey"`
	Stage            Stage   `json:"stage"           gorm:"type:varchar(24);not null;default:'consent'"`
	LastCheckpoint   Stage   `json:"last_checkpoint" gorm:"type:varchar(24)"`
	Progress         float64 `json:"progress"        gorm:"not null;default:0"`
	ConsentGiven     bool    `json:"consent_given"   gorm:"not null;default:false"`
	SafetyFlag       bool    `json:"safety_flag"     gorm:"not null;default:false"`
	ReportInProgress bool    `json:"report_in_progress" gorm:"not null;default:false"`
	Language         string  `json:"language"        gorm:"type:varchar(10);not null;default:'en'"`

	// In-progress intake record. Set fields are stored as JSON arrays so
	// insertion order is irrelevant and duplicates are impossible to persist.
	IncidentTypes       JSONStrings  `json:"incident_types"      gorm:"type:text"`
	Timeframe           Timeframe    `json:"timeframe"           gorm:"type:varchar(24)"`
	IsOngoing           bool         `json:"is_ongoing"          gorm:"not null;default:false"`
	County              string       `json:"county"              gorm:"type:varchar(50)"`
	LocationDescription string       `json:"location_description" gorm:"type:text"`
	Relationship        Relationship `json:"relationship"        gorm:"type:varchar(32)"`
	SupportNeeds        JSONStrings  `json:"support_needs"       gorm:"type:text"`
	ReportingBarriers   JSONStrings  `json:"reporting_barriers"  gorm:"type:text"`
	Description         string       `json:"-"                   gorm:"type:text"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName returns the database table name for Session.
func (Session) TableName() string { return "sessions" }

// IncidentReport is the persisted, post-submission artifact. Free-text
// fields are encrypted blobs; categorical columns are plaintext for
// aggregate analytics; coordinates are fuzzed before they reach this row.
// Reports are never deleted; only their Status changes, via moderation.
type IncidentReport struct {
	ID           uint         `json:"-"         gorm:"primaryKey"`
	ReportIDHash string       `json:"report_id" gorm:"type:char(64);uniqueIndex;not null"`
	SessionID    string       `json:"-"         gorm:"type:char(40);index"`
	Status       ReportStatus `json:"status"    gorm:"type:varchar(16);not null;default:'unverified';index"`

	// Encrypted blobs (base64 of AES-GCM output).
	DescriptionEncrypted string `json:"-" gorm:"type:text"`
	LocationEncrypted    string `json:"-" gorm:"type:text"`

	// Plaintext categorical columns.
	County       string       `json:"county"        gorm:"type:varchar(50);index"`
	IncidentType string       `json:"incident_type" gorm:"type:varchar(50);not null;index"`
	Timeframe    Timeframe    `json:"timeframe"     gorm:"type:varchar(24)"`
	Relationship Relationship `json:"relationship"  gorm:"type:varchar(32)"`
	SupportNeeds JSONStrings  `json:"support_needs" gorm:"type:text"`
	Barriers     JSONStrings  `json:"barriers"      gorm:"type:text"`

	// Fuzzed coordinates; nil unless the survivor consented to mapping.
	Latitude       *float64 `json:"latitude"  gorm:"index"`
	Longitude      *float64 `json:"longitude" gorm:"index"`
	AccuracyKM     float64  `json:"accuracy_km" gorm:"not null;default:5"`
	MappingConsent bool     `json:"mapping_consent" gorm:"not null;default:false"`
	AutoVerified   bool     `json:"auto_verified"   gorm:"not null;default:false"`

	Language  string         `json:"language" gorm:"type:varchar(10);default:'en'"`
	Source    string         `json:"source"   gorm:"type:varchar(20);default:'chat'"`
	Timestamp time.Time      `json:"timestamp" gorm:"index"`
	CreatedAt time.Time      `json:"-"`
	UpdatedAt time.Time      `json:"-"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName returns the database table name for IncidentReport.
func (IncidentReport) TableName() string { return "incident_reports" }

// JSONStrings stores a string set as a JSON array in a TEXT column.
type JSONStrings []string

// Value serializes the slice to JSON for storage.
func (j JSONStrings) Value() (driver.Value, error) {
	if len(j) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal([]string(j))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan deserializes a JSON array from the database.
func (j *JSONStrings) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*j = nil
		return nil
	case []byte:
		if len(v) == 0 {
			*j = nil
			return nil
		}
		return json.Unmarshal(v, (*[]string)(j))
	case string:
		if v == "" {
			*j = nil
			return nil
		}
		return json.Unmarshal([]byte(v), (*[]string)(j))
	default:
		*j = nil
		return nil
	}
}

// Contains reports whether the set already holds v.
func (j JSONStrings) Contains(v string) bool {
	for _, s := range j {
		if s == v {
			return true
		}
	}
	return false
}

// Add appends v when absent and returns the (possibly unchanged) set.
func (j JSONStrings) Add(v string) JSONStrings {
	if j.Contains(v) {
		return j
	}
	return append(j, v)
}
