package database

import (
	"context"
	"database/sql"
	"fmt"
)

// CreateSchema creates the tables used by the allotment service.
// Safe to call multiple times - uses IF NOT EXISTS.  The applicant,
// college, course and preference tables are normally owned by the
// registration system; they are created here so a fresh database is
// usable on its own.
func CreateSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS colleges (
    id         BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
    code       VARCHAR(20)  NOT NULL UNIQUE,
    name       VARCHAR(255) NOT NULL,
    is_active  TINYINT(1)   NOT NULL DEFAULT 1,
    created_at DATETIME     NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME     NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
) ENGINE=InnoDB;

CREATE TABLE IF NOT EXISTS courses (
    id              BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
    college_id      BIGINT UNSIGNED NOT NULL,
    code            VARCHAR(20)  NOT NULL,
    name            VARCHAR(255) NOT NULL,
    is_active       TINYINT(1)   NOT NULL DEFAULT 1,
    min_rank        INT NULL,
    max_rank        INT NULL,
    total_seats     INT NOT NULL,
    available_seats INT NOT NULL,
    general_seats   INT NOT NULL DEFAULT 0,
    obc_seats       INT NOT NULL DEFAULT 0,
    sc_seats        INT NOT NULL DEFAULT 0,
    st_seats        INT NOT NULL DEFAULT 0,
    ews_seats       INT NOT NULL DEFAULT 0,
    version         INT UNSIGNED NOT NULL DEFAULT 1,
    created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
    UNIQUE KEY uq_college_course (college_id, code),
    CONSTRAINT fk_courses_college FOREIGN KEY (college_id) REFERENCES colleges(id),
    CONSTRAINT chk_courses_available CHECK (available_seats >= 0 AND available_seats <= total_seats),
    CONSTRAINT chk_courses_categories CHECK (general_seats >= 0 AND obc_seats >= 0 AND sc_seats >= 0 AND st_seats >= 0 AND ews_seats >= 0)
) ENGINE=InnoDB;

CREATE TABLE IF NOT EXISTS applicants (
    id                  BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
    user_id             BIGINT UNSIGNED NOT NULL UNIQUE,
    full_name           VARCHAR(255) NOT NULL,
    exam_rank           INT NOT NULL,
    category            ENUM('General','OBC','SC','ST','EWS') NOT NULL,
    documents_verified  TINYINT(1) NOT NULL DEFAULT 0,
    payment_complete    TINYINT(1) NOT NULL DEFAULT 0,
    preferences_locked  TINYINT(1) NOT NULL DEFAULT 0,
    seat_allotted       TINYINT(1) NOT NULL DEFAULT 0,
    admission_confirmed TINYINT(1) NOT NULL DEFAULT 0,
    created_at          DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at          DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
    KEY idx_applicants_rank (exam_rank)
) ENGINE=InnoDB;

CREATE TABLE IF NOT EXISTS preferences (
    id               BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
    applicant_id     BIGINT UNSIGNED NOT NULL,
    course_id        BIGINT UNSIGNED NOT NULL,
    preference_order INT NOT NULL,
    is_locked        TINYINT(1) NOT NULL DEFAULT 0,
    created_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE KEY uq_applicant_course (applicant_id, course_id),
    UNIQUE KEY uq_applicant_order (applicant_id, preference_order),
    CONSTRAINT fk_preferences_applicant FOREIGN KEY (applicant_id) REFERENCES applicants(id),
    CONSTRAINT fk_preferences_course FOREIGN KEY (course_id) REFERENCES courses(id)
) ENGINE=InnoDB;

CREATE TABLE IF NOT EXISTS allotment_rounds (
    id                  BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
    round_number        INT NOT NULL UNIQUE,
    start_date          DATETIME NOT NULL,
    end_date            DATETIME NOT NULL,
    acceptance_deadline DATETIME NOT NULL,
    status              ENUM('SCHEDULED','ACTIVE','COMPLETED') NOT NULL DEFAULT 'SCHEDULED',
    total_allotments    INT NOT NULL DEFAULT 0,
    accepted_count      INT NOT NULL DEFAULT 0,
    rejected_count      INT NOT NULL DEFAULT 0,
    created_at          DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at          DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
) ENGINE=InnoDB;

CREATE TABLE IF NOT EXISTS allotments (
    id                BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
    applicant_id      BIGINT UNSIGNED NOT NULL,
    course_id         BIGINT UNSIGNED NOT NULL,
    round_id          BIGINT UNSIGNED NOT NULL,
    allotted_rank     INT NOT NULL,
    allotted_category ENUM('General','OBC','SC','ST','EWS') NOT NULL,
    status            ENUM('ALLOTTED','ACCEPTED_FROZEN','ACCEPTED_UPGRADE','REJECTED','UPGRADED','CANCELLED') NOT NULL DEFAULT 'ALLOTTED',
    acceptance_date   DATETIME NULL,
    rejection_reason  TEXT NULL,
    allotted_at       DATETIME NOT NULL,
    updated_at        DATETIME NOT NULL,
    UNIQUE KEY uq_applicant_round (applicant_id, round_id),
    KEY idx_allotments_course (course_id),
    KEY idx_allotments_status (status),
    CONSTRAINT fk_allotments_applicant FOREIGN KEY (applicant_id) REFERENCES applicants(id),
    CONSTRAINT fk_allotments_course FOREIGN KEY (course_id) REFERENCES courses(id),
    CONSTRAINT fk_allotments_round FOREIGN KEY (round_id) REFERENCES allotment_rounds(id)
) ENGINE=InnoDB;

CREATE TABLE IF NOT EXISTS audit_logs (
    id          BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
    user_id     BIGINT UNSIGNED NULL,
    action      VARCHAR(100) NOT NULL,
    entity_type VARCHAR(50)  NULL,
    entity_id   BIGINT UNSIGNED NULL,
    description TEXT NULL,
    status      VARCHAR(20)  NULL,
    created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    KEY idx_audit_action (action),
    KEY idx_audit_entity (entity_type, entity_id)
) ENGINE=InnoDB;
`
