package services

import (
	"context"
	"net/url"
	"strconv"

	"github.com/iot-for-tillgenglighet/farmdash/internal/pkg/domain"
)

//Resource paths as exposed by the backend
const (
	FarmPath     = "Farm"
	FieldPath    = "Field"
	CropPath     = "Crop"
	SensorPath   = "Sensor"
	SchedulePath = "Schedule"
	UserPath     = "User"
)

//FarmService manages farms
type FarmService struct {
	*Resource[domain.Farm]
}

//NewFarmService creates a FarmService
func NewFarmService(api API, identity Identity) *FarmService {
	return &FarmService{NewResource[domain.Farm](api, identity, FarmPath)}
}

//FieldService manages fields
type FieldService struct {
	*Resource[domain.Field]
}

//NewFieldService creates a FieldService
func NewFieldService(api API, identity Identity) *FieldService {
	return &FieldService{NewResource[domain.Field](api, identity, FieldPath)}
}

//ByFarm lists the fields of one farm
func (s *FieldService) ByFarm(ctx context.Context, farmID int64) (Collection[domain.Field], error) {
	return s.Filter(ctx, url.Values{"farmId": []string{strconv.FormatInt(farmID, 10)}})
}

//CropService manages the crop catalogue
type CropService struct {
	*Resource[domain.Crop]
}

//NewCropService creates a CropService
func NewCropService(api API, identity Identity) *CropService {
	return &CropService{NewResource[domain.Crop](api, identity, CropPath)}
}

//SensorService manages sensors
type SensorService struct {
	*Resource[domain.Sensor]
}

//NewSensorService creates a SensorService
func NewSensorService(api API, identity Identity) *SensorService {
	return &SensorService{NewResource[domain.Sensor](api, identity, SensorPath)}
}

//ByField lists the sensors installed on one field
func (s *SensorService) ByField(ctx context.Context, fieldID int64) (Collection[domain.Sensor], error) {
	return s.Filter(ctx, url.Values{"fieldId": []string{strconv.FormatInt(fieldID, 10)}})
}

//ScheduleService manages scheduled field tasks
type ScheduleService struct {
	*Resource[domain.Schedule]
}

//NewScheduleService creates a ScheduleService
func NewScheduleService(api API, identity Identity) *ScheduleService {
	return &ScheduleService{NewResource[domain.Schedule](api, identity, SchedulePath)}
}

//Complete marks a schedule as done
func (s *ScheduleService) Complete(ctx context.Context, schedule domain.Schedule) (domain.Schedule, error) {
	schedule.IsCompleted = true
	return s.Update(ctx, schedule.ID, schedule)
}
