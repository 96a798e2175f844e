package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema lists the tables used by the reservation store.  Identifiers are
// strings such as "Screening12"; every row carries a version that the
// store bumps on each write and checks on commit.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS bookings (
		id            VARCHAR(64)   NOT NULL PRIMARY KEY,
		no_of_seats   INT           NOT NULL,
		cost          DECIMAL(10,2) NOT NULL,
		email_address VARCHAR(255)  NOT NULL,
		version       BIGINT        NOT NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS films (
		id       VARCHAR(64)  NOT NULL PRIMARY KEY,
		name     VARCHAR(255) NOT NULL,
		category VARCHAR(64)  NOT NULL,
		genre    VARCHAR(64)  NOT NULL,
		duration INT          NOT NULL,
		trailer  VARCHAR(512) NULL,
		poster   VARCHAR(512) NULL,
		version  BIGINT       NOT NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS theatres (
		id           VARCHAR(64) NOT NULL PRIMARY KEY,
		capacity     INT         NOT NULL,
		seat_rows    INT         NOT NULL DEFAULT 0,
		seat_columns INT         NOT NULL DEFAULT 0,
		version      BIGINT      NOT NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS ticket_types (
		id      VARCHAR(64)   NOT NULL PRIMARY KEY,
		cost    DECIMAL(10,2) NOT NULL,
		version BIGINT        NOT NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS screenings (
		id              VARCHAR(64) NOT NULL PRIMARY KEY,
		film_id         VARCHAR(64) NOT NULL,
		theatre_id      VARCHAR(64) NOT NULL,
		show_date       CHAR(10)    NOT NULL,
		start_time      CHAR(5)     NOT NULL,
		seats_remaining INT         NOT NULL,
		version         BIGINT      NOT NULL,
		KEY idx_screenings_slot (theatre_id, show_date),
		KEY idx_screenings_film (film_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS tickets (
		id             VARCHAR(64) NOT NULL PRIMARY KEY,
		booking_id     VARCHAR(64) NOT NULL,
		screening_id   VARCHAR(64) NOT NULL,
		ticket_type_id VARCHAR(64) NOT NULL,
		seat_row       INT         NOT NULL,
		seat_column    INT         NOT NULL,
		version        BIGINT      NOT NULL,
		UNIQUE KEY uq_tickets_seat (screening_id, seat_row, seat_column),
		KEY idx_tickets_booking (booking_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS counters (
		kind       VARCHAR(64) NOT NULL PRIMARY KEY,
		last_value BIGINT      NOT NULL,
		version    BIGINT      NOT NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS schedule_slots (
		slot_key VARCHAR(128) NOT NULL PRIMARY KEY,
		revision BIGINT       NOT NULL,
		version  BIGINT       NOT NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates any missing table.  Existing tables are left untouched.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
