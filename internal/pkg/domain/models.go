package domain

import (
	"time"
)

//Entity is implemented by every record type that is written through a resource service.
//WithOwner returns a copy of the record with the ownership field set to userID.
type Entity[T any] interface {
	Identifier() int64
	WithOwner(userID int64) T
	Validate() error
}

//Row is implemented by records that can be rendered as a table or exported to a spreadsheet
type Row interface {
	Columns() []string
	Values() []interface{}
}

//Farm is a named piece of land owned by a user
type Farm struct {
	ID           int64    `json:"id"`
	Name         string   `json:"name" validate:"required,max=100"`
	Location     string   `json:"location" validate:"required,max=200"`
	Latitude     *float64 `json:"latitude,omitempty" validate:"omitempty,min=-90,max=90"`
	Longitude    *float64 `json:"longitude,omitempty" validate:"omitempty,min=-180,max=180"`
	TotalAcreage float64  `json:"totalAcreage" validate:"gte=0"`
	UserID       int64    `json:"userId"`
	IsActive     bool     `json:"isActive"`
}

func (f Farm) Identifier() int64 { return f.ID }

func (f Farm) WithOwner(userID int64) Farm {
	f.UserID = userID
	return f
}

func (f Farm) Validate() error { return validateRecord(f) }

func (Farm) Columns() []string {
	return []string{"ID", "Name", "Location", "Acreage", "Latitude", "Longitude", "Active"}
}

func (f Farm) Values() []interface{} {
	return []interface{}{f.ID, f.Name, f.Location, f.TotalAcreage, optional(f.Latitude), optional(f.Longitude), f.IsActive}
}

//Field is a cultivated plot that belongs to a farm
type Field struct {
	ID             int64   `json:"id"`
	Name           string  `json:"name" validate:"required,max=100"`
	FarmID         int64   `json:"farmId" validate:"required"`
	Size           float64 `json:"size" validate:"gte=0"`
	SoilType       string  `json:"soilType" validate:"max=50"`
	IrrigationType string  `json:"irrigationType" validate:"max=50"`
	UserID         int64   `json:"userId"`
	IsActive       bool    `json:"isActive"`
}

func (f Field) Identifier() int64 { return f.ID }

func (f Field) WithOwner(userID int64) Field {
	f.UserID = userID
	return f
}

func (f Field) Validate() error { return validateRecord(f) }

func (Field) Columns() []string {
	return []string{"ID", "Name", "Farm", "Size", "Soil", "Irrigation", "Active"}
}

func (f Field) Values() []interface{} {
	return []interface{}{f.ID, f.Name, f.FarmID, f.Size, f.SoilType, f.IrrigationType, f.IsActive}
}

//Crop describes the growing conditions a crop variety needs
type Crop struct {
	ID                 int64   `json:"id"`
	Name               string  `json:"name" validate:"required,max=100"`
	MinSoilPH          float64 `json:"minSoilPH" validate:"gte=0,lte=14"`
	MaxSoilPH          float64 `json:"maxSoilPH" validate:"lte=14,gtfield=MinSoilPH"`
	MinTemperature     float64 `json:"minTemperature" validate:"gte=-50,lte=60"`
	MaxTemperature     float64 `json:"maxTemperature" validate:"lte=60,gtfield=MinTemperature"`
	WaterRequirement   float64 `json:"waterRequirement" validate:"gte=0"`
	GrowthDurationDays int     `json:"growthDurationDays" validate:"gte=0,lte=3650"`
	SeedingDepth       float64 `json:"seedingDepth" validate:"gte=0"`
	HarvestSeason      string  `json:"harvestSeason" validate:"max=50"`
	Description        string  `json:"description" validate:"max=1000"`
	UserID             int64   `json:"userId"`
	IsActive           bool    `json:"isActive"`
}

func (c Crop) Identifier() int64 { return c.ID }

func (c Crop) WithOwner(userID int64) Crop {
	c.UserID = userID
	return c
}

func (c Crop) Validate() error { return validateRecord(c) }

func (Crop) Columns() []string {
	return []string{"ID", "Name", "pH", "Temperature", "Water", "Days", "Season", "Active"}
}

func (c Crop) Values() []interface{} {
	return []interface{}{
		c.ID, c.Name,
		formatRange(c.MinSoilPH, c.MaxSoilPH),
		formatRange(c.MinTemperature, c.MaxTemperature),
		c.WaterRequirement, c.GrowthDurationDays, c.HarvestSeason, c.IsActive,
	}
}

//SensorType enumerates the kinds of sensors a field can carry
type SensorType string

const (
	SensorTemperature  SensorType = "temperature"
	SensorHumidity     SensorType = "humidity"
	SensorSoilMoisture SensorType = "soil_moisture"
	SensorPH           SensorType = "ph"
	SensorLight        SensorType = "light"
	SensorPressure     SensorType = "pressure"
	SensorWind         SensorType = "wind"
	SensorRain         SensorType = "rain"
)

//SensorTypes lists every supported sensor type in display order
var SensorTypes = []SensorType{
	SensorTemperature, SensorHumidity, SensorSoilMoisture, SensorPH,
	SensorLight, SensorPressure, SensorWind, SensorRain,
}

//Sensor is a device installed on a field together with its most recent reading
type Sensor struct {
	ID                      int64      `json:"id"`
	SensorType              SensorType `json:"sensorType" validate:"required,oneof=temperature humidity soil_moisture ph light pressure wind rain"`
	Manufacturer            string     `json:"manufacturer" validate:"max=100"`
	Model                   string     `json:"model" validate:"max=100"`
	SerialNumber            string     `json:"serialNumber" validate:"required,max=100"`
	FieldID                 int64      `json:"fieldId" validate:"required"`
	LastReadingValue        *float64   `json:"lastReadingValue,omitempty"`
	LastReadingUnit         string     `json:"lastReadingUnit,omitempty" validate:"max=20"`
	LastReadingQuality      string     `json:"lastReadingQuality,omitempty" validate:"max=20"`
	LastReadingAt           *time.Time `json:"lastReadingAt,omitempty"`
	CalibrationDate         *time.Time `json:"calibrationDate,omitempty"`
	CalibrationIntervalDays int        `json:"calibrationIntervalDays" validate:"gte=0,lte=3650"`
	UserID                  int64      `json:"userId"`
	IsActive                bool       `json:"isActive"`
}

func (s Sensor) Identifier() int64 { return s.ID }

func (s Sensor) WithOwner(userID int64) Sensor {
	s.UserID = userID
	return s
}

func (s Sensor) Validate() error { return validateRecord(s) }

//CalibrationDue reports whether the calibration interval has elapsed at the given time.
//Sensors without a calibration date or interval are never due.
func (s Sensor) CalibrationDue(now time.Time) bool {
	if s.CalibrationDate == nil || s.CalibrationIntervalDays <= 0 {
		return false
	}
	return s.CalibrationDate.AddDate(0, 0, s.CalibrationIntervalDays).Before(now)
}

func (Sensor) Columns() []string {
	return []string{"ID", "Type", "Serial", "Field", "Reading", "Quality", "Read at", "Active"}
}

func (s Sensor) Values() []interface{} {
	reading := ""
	if s.LastReadingValue != nil {
		reading = formatReading(*s.LastReadingValue, s.LastReadingUnit)
	}
	readAt := ""
	if s.LastReadingAt != nil {
		readAt = s.LastReadingAt.Format(time.RFC3339)
	}
	return []interface{}{s.ID, string(s.SensorType), s.SerialNumber, s.FieldID, reading, s.LastReadingQuality, readAt, s.IsActive}
}

//Priority of a scheduled task
type Priority string

const (
	PriorityLow      Priority = "Low"
	PriorityMedium   Priority = "Medium"
	PriorityHigh     Priority = "High"
	PriorityCritical Priority = "Critical"
)

//Schedule is a planned task on a field, such as irrigation or fertilising
type Schedule struct {
	ID              int64     `json:"id"`
	FieldID         int64     `json:"fieldId" validate:"required"`
	ScheduleType    string    `json:"scheduleType" validate:"required,max=50"`
	Title           string    `json:"title" validate:"required,max=150"`
	Description     string    `json:"description" validate:"max=1000"`
	ScheduledAt     time.Time `json:"scheduledAt" validate:"required"`
	DurationMinutes int       `json:"durationMinutes" validate:"gte=0"`
	EstimatedCost   float64   `json:"estimatedCost" validate:"gte=0"`
	Priority        Priority  `json:"priority" validate:"required,oneof=Low Medium High Critical"`
	IsCompleted     bool      `json:"isCompleted"`
	CreatedBy       int64     `json:"createdBy"`
}

func (s Schedule) Identifier() int64 { return s.ID }

func (s Schedule) WithOwner(userID int64) Schedule {
	s.CreatedBy = userID
	return s
}

func (s Schedule) Validate() error { return validateRecord(s) }

//EditableBy reports whether the schedule should be offered for editing to the given user.
//This is a presentation hint only, the backend decides what a user may change.
func (s Schedule) EditableBy(userID int64) bool {
	return userID != 0 && s.CreatedBy == userID
}

func (Schedule) Columns() []string {
	return []string{"ID", "Field", "Type", "Title", "When", "Minutes", "Cost", "Priority", "Done"}
}

func (s Schedule) Values() []interface{} {
	return []interface{}{
		s.ID, s.FieldID, s.ScheduleType, s.Title, s.ScheduledAt.Format("2006-01-02 15:04"),
		s.DurationMinutes, s.EstimatedCost, string(s.Priority), s.IsCompleted,
	}
}

//Role of a user account
type Role string

const (
	RoleUser  Role = "User"
	RoleAdmin Role = "Admin"
)

//User is an account of the dashboard. PasswordHash is never sent by the client.
type User struct {
	ID           int64      `json:"id"`
	FullName     string     `json:"fullName" validate:"required,max=100"`
	Email        string     `json:"email" validate:"required,email,max=254"`
	Phone        string     `json:"phone,omitempty" validate:"omitempty,len=10,numeric"`
	Address      string     `json:"address,omitempty" validate:"max=250"`
	Role         Role       `json:"role" validate:"required,oneof=User Admin"`
	ProfileImage string     `json:"profileImage,omitempty"`
	PasswordHash string     `json:"-"`
	IsActive     bool       `json:"isActive"`
	CreatedAt    *time.Time `json:"createdAt,omitempty"`
	UpdatedAt    *time.Time `json:"updatedAt,omitempty"`
}

func (u User) Identifier() int64 { return u.ID }

func (u User) Validate() error { return validateRecord(u) }

//IsAdmin reports whether the user has the administrator role
func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

func (User) Columns() []string {
	return []string{"ID", "Name", "Email", "Phone", "Role", "Active"}
}

func (u User) Values() []interface{} {
	return []interface{}{u.ID, u.FullName, u.Email, u.Phone, string(u.Role), u.IsActive}
}

//UserPatch carries a partial user update. Nil fields are left untouched.
type UserPatch struct {
	FullName     *string `json:"fullName,omitempty" validate:"omitempty,min=1,max=100"`
	Email        *string `json:"email,omitempty" validate:"omitempty,email,max=254"`
	Phone        *string `json:"phone,omitempty" validate:"omitempty,len=10,numeric"`
	Address      *string `json:"address,omitempty" validate:"omitempty,max=250"`
	Role         *Role   `json:"role,omitempty" validate:"omitempty,oneof=User Admin"`
	ProfileImage *string `json:"profileImage,omitempty"`
}

func (p UserPatch) Validate() error { return validateRecord(p) }

//ApplyTo returns a copy of u with every non-nil field of the patch applied
func (p UserPatch) ApplyTo(u User) User {
	if p.FullName != nil {
		u.FullName = *p.FullName
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.Phone != nil {
		u.Phone = *p.Phone
	}
	if p.Address != nil {
		u.Address = *p.Address
	}
	if p.Role != nil {
		u.Role = *p.Role
	}
	if p.ProfileImage != nil {
		u.ProfileImage = *p.ProfileImage
	}
	return u
}

//Profile is a user as returned by a profile lookup. Active is nil when the response did not
//carry isActive, so a partial profile cannot deactivate the cached user.
type Profile struct {
	User
	Active *bool `json:"isActive,omitempty"`
}

//Credentials are what a user submits on the login form
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (c Credentials) Validate() error { return validateRecord(c) }

//Registration is the sign-up form
type Registration struct {
	FullName        string `json:"fullName" validate:"required,max=100"`
	Email           string `json:"email" validate:"required,email,max=254"`
	Phone           string `json:"phone,omitempty" validate:"omitempty,len=10,numeric"`
	Address         string `json:"address,omitempty" validate:"max=250"`
	Password        string `json:"password" validate:"required,min=8,max=128"`
	ConfirmPassword string `json:"-" validate:"eqfield=Password"`
}

func (r Registration) Validate() error { return validateRecord(r) }

//Coordinates is a point to look up with the geocoder
type Coordinates struct {
	Latitude  float64 `json:"latitude" validate:"min=-90,max=90"`
	Longitude float64 `json:"longitude" validate:"min=-180,max=180"`
}

func (c Coordinates) Validate() error { return validateRecord(c) }

//Coordinates returns the position of the farm, if both latitude and longitude are known
func (f Farm) Coordinates() (Coordinates, bool) {
	if f.Latitude == nil || f.Longitude == nil {
		return Coordinates{}, false
	}
	return Coordinates{Latitude: *f.Latitude, Longitude: *f.Longitude}, true
}

//Option is an id/name pair returned by the dropdown endpoints
type Option struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
