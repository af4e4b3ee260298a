package database

import (
	"context"
	"fmt"
)

// CreateSchema creates the database schema
func (db *DB) CreateSchema(ctx context.Context) error {
	db.logger.Info("Creating database schema...")

	if err := db.createExtensions(ctx); err != nil {
		return fmt.Errorf("failed to create extensions: %w", err)
	}

	tables := []string{
		createUsersTable,
		createPatientsTable,
		createDoctorsTable,
		createMedicalRecordsTable,
	}

	for _, table := range tables {
		if _, err := db.ExecContext(ctx, table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	indexes := []string{
		createUsersIndexes,
		createPatientsIndexes,
		createMedicalRecordsIndexes,
	}

	for _, index := range indexes {
		if _, err := db.ExecContext(ctx, index); err != nil {
			return fmt.Errorf("failed to create indexes: %w", err)
		}
	}

	db.logger.Info("Database schema created")
	return nil
}

// createExtensions creates required PostgreSQL extensions
func (db *DB) createExtensions(ctx context.Context) error {
	extensions := []string{
		`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,
	}

	for _, ext := range extensions {
		if _, err := db.ExecContext(ctx, ext); err != nil {
			return fmt.Errorf("failed to create extension: %w", err)
		}
	}

	return nil
}

// SQL DDL statements for table creation
const (
	createUsersTable = `
		CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			email VARCHAR(255) NOT NULL,
			password_hash VARCHAR(100) NOT NULL,
			role VARCHAR(20) NOT NULL CHECK (role IN ('patient', 'doctor')),
			license VARCHAR(100) NOT NULL DEFAULT '',
			reset_code VARCHAR(10) NOT NULL DEFAULT '',
			reset_expires TIMESTAMPTZ,
			reset_verified BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`

	createPatientsTable = `
		CREATE TABLE IF NOT EXISTS patients (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			user_id UUID NOT NULL REFERENCES users(id),
			full_name VARCHAR(80) NOT NULL,
			health_card_id VARCHAR(11) NOT NULL,
			qr_code_id VARCHAR(11),
			blood_group VARCHAR(5) NOT NULL DEFAULT '',
			dob DATE,
			phone_number VARCHAR(20) NOT NULL DEFAULT '',
			relative_phone_number VARCHAR(20) NOT NULL DEFAULT '',
			address VARCHAR(200) NOT NULL DEFAULT '',
			allergies TEXT[] NOT NULL DEFAULT '{}',
			otp_code VARCHAR(10) NOT NULL DEFAULT '',
			otp_expires TIMESTAMPTZ,
			otp_verified BOOLEAN NOT NULL DEFAULT FALSE,
			otp_requested_by UUID,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT patients_health_card_id_key UNIQUE (health_card_id)
		);`

	createDoctorsTable = `
		CREATE TABLE IF NOT EXISTS doctors (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			user_id UUID NOT NULL REFERENCES users(id),
			full_name VARCHAR(80) NOT NULL,
			specialization VARCHAR(100) NOT NULL DEFAULT '',
			hospital_name VARCHAR(100) NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`

	createMedicalRecordsTable = `
		CREATE TABLE IF NOT EXISTS medical_records (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			patient_id UUID NOT NULL REFERENCES patients(id),
			doctor_id UUID NOT NULL REFERENCES doctors(id),
			diagnosis VARCHAR(500) NOT NULL,
			notes VARCHAR(2000) NOT NULL DEFAULT '',
			treatments TEXT[] NOT NULL DEFAULT '{}',
			visit_date TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`
)

// SQL DDL statements for index creation
const (
	// Email uniqueness is case-folded: the unique index is on lower(email).
	createUsersIndexes = `
		CREATE UNIQUE INDEX IF NOT EXISTS users_email_lower_key ON users (lower(email));`

	// qr_code_id is unique-sparse: nullable, unique when present.
	createPatientsIndexes = `
		CREATE UNIQUE INDEX IF NOT EXISTS patients_qr_code_id_key ON patients (qr_code_id) WHERE qr_code_id IS NOT NULL;
		CREATE INDEX IF NOT EXISTS patients_user_id_idx ON patients (user_id);`

	createMedicalRecordsIndexes = `
		CREATE INDEX IF NOT EXISTS medical_records_patient_idx ON medical_records (patient_id, visit_date DESC);`
)
