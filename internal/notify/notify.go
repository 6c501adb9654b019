// Package notify émet les événements métier consommés par les canaux de
// livraison externes (email, push). La livraison est au-moins-une-fois:
// le consommateur dédoublonne sur (type, fiche, bracelet, occurred_at).
package notify

import (
	"log"
	"sync"
	"time"
)

type EventType string

const (
	EventGardeProposee       EventType = "garde_proposee"
	EventGardeTransferee     EventType = "garde_transferee"
	EventGardeRefusee        EventType = "garde_refusee"
	EventDecisionEnregistree EventType = "decision_enregistree"
	EventFicheCloturee       EventType = "fiche_cloturee"
)

type Event struct {
	Type        EventType      `json:"type"`
	FicheNumero string         `json:"fiche_numero"`
	Bracelet    string         `json:"numero_bracelet,omitempty"`
	ActorUserID uint           `json:"actor_user_id"`
	Payload     map[string]any `json:"payload,omitempty"`
	OccurredAt  time.Time      `json:"occurred_at"`
}

// Sink reçoit chaque événement publié. Une erreur de livraison n'interrompt
// jamais la mutation métier qui l'a produite.
type Sink interface {
	Deliver(Event) error
}

type logSink struct{}

func (logSink) Deliver(e Event) error {
	log.Printf("[notify] %s fiche=%s bracelet=%s user=%d", e.Type, e.FicheNumero, e.Bracelet, e.ActorUserID)
	return nil
}

var (
	mu   sync.RWMutex
	sink Sink = logSink{}
)

func SetSink(s Sink) {
	mu.Lock()
	defer mu.Unlock()
	sink = s
}

// ResetSink rétablit la journalisation par défaut.
func ResetSink() {
	mu.Lock()
	defer mu.Unlock()
	sink = logSink{}
}

func Publish(e Event) {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now()
	}
	mu.RLock()
	s := sink
	mu.RUnlock()
	if err := s.Deliver(e); err != nil {
		log.Printf("[notify] livraison échouée (%s, fiche %s): %v", e.Type, e.FicheNumero, err)
	}
}
