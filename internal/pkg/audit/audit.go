package audit

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2/log"
	"github.com/quillsign/quillsign/app/models"
	"github.com/quillsign/quillsign/app/repository"
)

// ServiceActorID identifies audit rows written by the engine itself
// rather than on behalf of a person.
const ServiceActorID = "quillsign-core"

// Recorder appends lifecycle events to the contract audit trail. Writes
// happen with the service identity, so a caller's access policy can
// never block the trail. Append failures are logged, never propagated:
// the audit trail must not veto a state change that already happened.
type Recorder struct {
	events repository.EventRepository
}

// NewRecorder creates an audit recorder.
func NewRecorder(events repository.EventRepository) *Recorder {
	return &Recorder{events: events}
}

// Record appends one event with system/service identity.
func (r *Recorder) Record(contractID, companyID uint, eventType string, metadata map[string]interface{}) {
	r.RecordAs(contractID, companyID, eventType, models.ActorSystem, ServiceActorID, metadata)
}

// RecordAs appends one event attributed to a specific actor.
func (r *Recorder) RecordAs(contractID, companyID uint, eventType, actorType, actorID string, metadata map[string]interface{}) {
	var meta models.JSON
	if len(metadata) > 0 {
		b, err := json.Marshal(metadata)
		if err != nil {
			log.Warnf("[Audit] metadata marshal for contract %d event %s: %v", contractID, eventType, err)
		} else {
			meta = models.JSON(b)
		}
	}

	event := &models.ContractEvent{
		ContractID: contractID,
		CompanyID:  companyID,
		EventType:  eventType,
		ActorType:  actorType,
		ActorID:    actorID,
		Metadata:   meta,
	}
	if err := r.events.Append(event); err != nil {
		log.Errorf("[Audit] append %s for contract %d failed: %v", eventType, contractID, err)
	}
}
