package application

import (
	"sort"
	"time"

	"github.com/iot-for-tillgenglighet/farmdash/internal/pkg/domain"
	"github.com/iot-for-tillgenglighet/farmdash/internal/pkg/services"
)

//SensorGroup summarizes the sensors of one type
type SensorGroup struct {
	Type           domain.SensorType
	Active         int
	Inactive       int
	CalibrationDue int
	Sensors        []domain.Sensor
}

//Total returns the number of sensors in the group
func (g SensorGroup) Total() int {
	return len(g.Sensors)
}

//SensorDashboard groups the sensors of a list view by type
type SensorDashboard struct {
	view *ListView[domain.Sensor]
	now  func() time.Time
}

//NewSensorDashboard creates a dashboard over view. Load the view before reading groups.
func NewSensorDashboard(view *ListView[domain.Sensor]) *SensorDashboard {
	return &SensorDashboard{view: view, now: time.Now}
}

//View returns the underlying list
func (d *SensorDashboard) View() *ListView[domain.Sensor] {
	return d.view
}

//Groups returns one group per sensor type present, known types first in their display order
func (d *SensorDashboard) Groups() []SensorGroup {
	now := d.now()
	byType := map[domain.SensorType]*SensorGroup{}

	for _, sensor := range d.view.Items() {
		group, ok := byType[sensor.SensorType]
		if !ok {
			group = &SensorGroup{Type: sensor.SensorType}
			byType[sensor.SensorType] = group
		}

		group.Sensors = append(group.Sensors, sensor)
		if sensor.IsActive {
			group.Active++
		} else {
			group.Inactive++
		}
		if sensor.CalibrationDue(now) {
			group.CalibrationDue++
		}
	}

	groups := make([]SensorGroup, 0, len(byType))
	for _, t := range domain.SensorTypes {
		if group, ok := byType[t]; ok {
			groups = append(groups, *group)
			delete(byType, t)
		}
	}

	unknown := make([]SensorGroup, 0, len(byType))
	for _, group := range byType {
		unknown = append(unknown, *group)
	}
	sort.Slice(unknown, func(i, j int) bool { return unknown[i].Type < unknown[j].Type })

	return append(groups, unknown...)
}

//CalendarEntry is one schedule on a calendar day
type CalendarEntry struct {
	Schedule domain.Schedule
	Editable bool
}

//CalendarDay holds the schedules of one day, in time order
type CalendarDay struct {
	Date    time.Time
	Entries []CalendarEntry
}

//ScheduleCalendar groups the schedules of a list view by day
type ScheduleCalendar struct {
	view     *ListView[domain.Schedule]
	identity services.Identity
}

//NewScheduleCalendar creates a calendar over view. Entries created by the user behind
//identity are marked editable.
func NewScheduleCalendar(view *ListView[domain.Schedule], identity services.Identity) *ScheduleCalendar {
	return &ScheduleCalendar{view: view, identity: identity}
}

//View returns the underlying list
func (c *ScheduleCalendar) View() *ListView[domain.Schedule] {
	return c.view
}

//Days returns the days that have at least one schedule, earliest first
func (c *ScheduleCalendar) Days() []CalendarDay {
	userID, _ := c.identity.UserID()

	schedules := c.view.Items()
	sort.SliceStable(schedules, func(i, j int) bool {
		return schedules[i].ScheduledAt.Before(schedules[j].ScheduledAt)
	})

	days := []CalendarDay{}
	for _, s := range schedules {
		y, m, d := s.ScheduledAt.Date()
		date := time.Date(y, m, d, 0, 0, 0, 0, s.ScheduledAt.Location())

		if len(days) == 0 || !days[len(days)-1].Date.Equal(date) {
			days = append(days, CalendarDay{Date: date})
		}

		last := &days[len(days)-1]
		last.Entries = append(last.Entries, CalendarEntry{Schedule: s, Editable: s.EditableBy(userID)})
	}

	return days
}

//Pending returns the schedules that are not completed and due before the given time
func (c *ScheduleCalendar) Pending(before time.Time) []domain.Schedule {
	pending := []domain.Schedule{}
	for _, s := range c.view.Items() {
		if !s.IsCompleted && s.ScheduledAt.Before(before) {
			pending = append(pending, s)
		}
	}
	return pending
}
