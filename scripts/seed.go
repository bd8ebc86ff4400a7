package main

import (
	"context"
	"log"
	"os"

	"github.com/carequery/decision-support/internal/infrastructure/clients/postgres"
	"github.com/carequery/decision-support/pkg/config"
)

const schema = `
CREATE TABLE IF NOT EXISTS patients (
	id BIGSERIAL PRIMARY KEY,
	first_name TEXT NOT NULL,
	last_name TEXT NOT NULL,
	date_of_birth DATE NOT NULL,
	gender TEXT NOT NULL DEFAULT '',
	allergies TEXT,
	medical_history_summary TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS medications (
	id BIGSERIAL PRIMARY KEY,
	patient_id BIGINT NOT NULL REFERENCES patients(id),
	name TEXT NOT NULL,
	dosage TEXT NOT NULL DEFAULT '',
	frequency TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'active',
	started_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS conditions (
	id BIGSERIAL PRIMARY KEY,
	patient_id BIGINT NOT NULL REFERENCES patients(id),
	name TEXT NOT NULL,
	diagnosed_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	is_active BOOLEAN NOT NULL DEFAULT true
);

CREATE TABLE IF NOT EXISTS medical_records (
	id BIGSERIAL PRIMARY KEY,
	patient_id BIGINT NOT NULL REFERENCES patients(id),
	title TEXT NOT NULL,
	diagnosis TEXT,
	summary TEXT NOT NULL DEFAULT '',
	date_of_visit TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS invocation_log (
	id UUID PRIMARY KEY,
	patient_id BIGINT NOT NULL,
	query TEXT NOT NULL,
	urgency TEXT NOT NULL,
	final_state TEXT NOT NULL,
	error_type TEXT,
	degraded BOOLEAN NOT NULL DEFAULT false,
	latency_ms BIGINT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

const sampleData = `
INSERT INTO patients (first_name, last_name, date_of_birth, gender, allergies, medical_history_summary) VALUES
	('Ada', 'Obi', '1958-03-14', 'female', 'penicillin', 'Long-standing type 2 diabetes, hypertension diagnosed 2019.'),
	('Chinedu', 'Eze', '1990-11-02', 'male', '', NULL),
	('Funmi', 'Adeyemi', '1975-07-21', 'female', 'sulfa drugs', 'Asthma since childhood.');

INSERT INTO medications (patient_id, name, dosage, frequency, status, started_at) VALUES
	(1, 'metformin', '500mg', 'twice daily', 'active', '2020-02-01'),
	(1, 'lisinopril', '10mg', 'daily', 'active', '2021-06-15'),
	(1, 'atorvastatin', '20mg', 'daily', 'discontinued', '2019-01-10'),
	(3, 'salbutamol inhaler', '100mcg', 'as needed', 'active', '2018-04-20');

INSERT INTO conditions (patient_id, name, diagnosed_at, is_active) VALUES
	(1, 'type 2 diabetes', '2015-09-01', true),
	(1, 'hypertension', '2019-03-12', true),
	(1, 'seasonal rhinitis', '2010-05-01', false),
	(3, 'asthma', '1982-01-01', true);

INSERT INTO medical_records (patient_id, title, diagnosis, summary, date_of_visit) VALUES
	(1, 'Quarterly diabetes review', 'stable glycemic control', 'HbA1c 6.9, continue current regimen.', '2026-05-10'),
	(1, 'Blood pressure follow-up', NULL, 'BP 142/88, discussed salt intake.', '2026-07-02'),
	(3, 'Asthma exacerbation', 'moderate exacerbation', 'Responded to nebulized salbutamol.', '2026-01-18');
`

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer pgClient.Close()

	ctx := context.Background()

	if _, err := pgClient.DB().ExecContext(ctx, schema); err != nil {
		log.Fatalf("Failed to create schema: %v", err)
	}
	log.Println("Schema ready")

	if os.Getenv("RESET_DB") == "true" {
		log.Println("RESET_DB=true detected, truncating tables before seeding")
		_, err := pgClient.DB().ExecContext(ctx, `
			TRUNCATE TABLE
				invocation_log,
				medical_records,
				conditions,
				medications,
				patients
			RESTART IDENTITY CASCADE
		`)
		if err != nil {
			log.Fatalf("Failed to truncate tables: %v", err)
		}
	}

	if _, err := pgClient.DB().ExecContext(ctx, sampleData); err != nil {
		log.Fatalf("Failed to seed sample data: %v", err)
	}
	log.Println("Seeded sample patients")
}
