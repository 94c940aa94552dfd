package dispatch

import (
	"sync"

	"vital-route-api-server/internal/models"
)

// missionState is what a driver's console keeps besides the alert record:
// the last hospital lookup and the last reported position. None of it is persisted.
type missionState struct {
	alertID    string
	facilities []models.Facility
	notice     string
	position   *models.GeoPoint
}

type missionBoard struct {
	mu       sync.Mutex
	byDriver map[string]*missionState
}

func newMissionBoard() *missionBoard {
	return &missionBoard{byDriver: make(map[string]*missionState)}
}

// get returns a copy so callers never share slices with the board.
func (b *missionBoard) get(driverID string) (missionState, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m, ok := b.byDriver[driverID]
	if !ok {
		return missionState{}, false
	}
	return *m, true
}

func (b *missionBoard) start(driverID, alertID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var pos *models.GeoPoint
	if prev, ok := b.byDriver[driverID]; ok {
		pos = prev.position
	}
	b.byDriver[driverID] = &missionState{alertID: alertID, position: pos}
}

func (b *missionBoard) setFacilities(driverID string, facilities []models.Facility, notice string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if m, ok := b.byDriver[driverID]; ok {
		m.facilities = facilities
		m.notice = notice
	}
}

func (b *missionBoard) setPosition(driverID string, p models.GeoPoint) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m, ok := b.byDriver[driverID]
	if !ok {
		m = &missionState{}
		b.byDriver[driverID] = m
	}
	m.position = &p
}

// finish clears the mission but remembers the driver's position.
func (b *missionBoard) finish(driverID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if m, ok := b.byDriver[driverID]; ok {
		b.byDriver[driverID] = &missionState{position: m.position}
	}
}

func (b *missionBoard) dropAlert(alertID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for driverID, m := range b.byDriver {
		if m.alertID == alertID {
			b.byDriver[driverID] = &missionState{position: m.position}
		}
	}
}
