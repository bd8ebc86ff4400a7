package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/carequery/decision-support/internal/domain/entities"
	"github.com/carequery/decision-support/internal/domain/providers"
	"github.com/carequery/decision-support/internal/domain/repositories"
)

// CachedPatientAdapter wraps PatientRepository with read-through caching.
// Patient demographics change rarely; the clinical lists get a shorter TTL
// so a new prescription shows up within a minute.
type CachedPatientAdapter struct {
	adapter         repositories.PatientRepository
	cache           providers.CacheProvider
	patientTTL      time.Duration
	clinicalListTTL time.Duration
}

const defaultPatientTTL = 5 * time.Minute

// NewCachedPatientAdapter creates a new cached patient adapter. factSheetTTL
// bounds how long any cached patient data may be reused.
func NewCachedPatientAdapter(adapter repositories.PatientRepository, cache providers.CacheProvider, factSheetTTL time.Duration) repositories.PatientRepository {
	if factSheetTTL <= 0 {
		factSheetTTL = defaultPatientTTL
	}
	clinicalListTTL := time.Minute
	if factSheetTTL < clinicalListTTL {
		clinicalListTTL = factSheetTTL
	}
	return &CachedPatientAdapter{
		adapter:         adapter,
		cache:           cache,
		patientTTL:      factSheetTTL,
		clinicalListTTL: clinicalListTTL,
	}
}

func patientCacheKey(id int64) string {
	return fmt.Sprintf("patient:%d", id)
}

// GetByID retrieves a patient by ID with caching. NotFound results are not
// cached; a patient registered mid-session must be visible immediately.
func (a *CachedPatientAdapter) GetByID(ctx context.Context, id int64) (*entities.Patient, error) {
	cacheKey := patientCacheKey(id)

	if cached, err := a.cache.Get(ctx, cacheKey); err == nil {
		var patient entities.Patient
		if err := json.Unmarshal(cached, &patient); err == nil {
			return &patient, nil
		}
		log.Warn().Int64("patient_id", id).Msg("failed to unmarshal cached patient, refetching")
	}

	patient, err := a.adapter.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	a.store(cacheKey, patient, a.patientTTL)
	return patient, nil
}

// ListActiveMedications retrieves active medications with caching
func (a *CachedPatientAdapter) ListActiveMedications(ctx context.Context, patientID int64) ([]entities.Medication, error) {
	cacheKey := fmt.Sprintf("patient:%d:medications", patientID)

	if cached, err := a.cache.Get(ctx, cacheKey); err == nil {
		var medications []entities.Medication
		if err := json.Unmarshal(cached, &medications); err == nil {
			return medications, nil
		}
	}

	medications, err := a.adapter.ListActiveMedications(ctx, patientID)
	if err != nil {
		return nil, err
	}

	a.store(cacheKey, medications, a.clinicalListTTL)
	return medications, nil
}

// ListConditions retrieves conditions with caching
func (a *CachedPatientAdapter) ListConditions(ctx context.Context, patientID int64) ([]entities.Condition, error) {
	cacheKey := fmt.Sprintf("patient:%d:conditions", patientID)

	if cached, err := a.cache.Get(ctx, cacheKey); err == nil {
		var conditions []entities.Condition
		if err := json.Unmarshal(cached, &conditions); err == nil {
			return conditions, nil
		}
	}

	conditions, err := a.adapter.ListConditions(ctx, patientID)
	if err != nil {
		return nil, err
	}

	a.store(cacheKey, conditions, a.clinicalListTTL)
	return conditions, nil
}

// ListRecentRecords is a passthrough. Visit records are already bounded by
// the limit and fetched once per invocation at most.
func (a *CachedPatientAdapter) ListRecentRecords(ctx context.Context, patientID int64, limit int) ([]entities.MedicalRecord, error) {
	return a.adapter.ListRecentRecords(ctx, patientID, limit)
}

// store updates the cache off the request path
func (a *CachedPatientAdapter) store(key string, value any, ttl time.Duration) {
	go func() {
		data, err := json.Marshal(value)
		if err != nil {
			return
		}
		if err := a.cache.Set(context.Background(), key, data, ttl); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("failed to update patient cache")
		}
	}()
}
