package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"knock-detection/models"
	"knock-detection/utils"

	_ "github.com/mattn/go-sqlite3" // SQLite driver registration
)

type SQLiteClient struct {
	db *sql.DB
}

func NewSQLiteClient(dataSourceName string) (*SQLiteClient, error) {
	// Extract the file path before query parameters
	dbPath := dataSourceName
	if idx := strings.Index(dataSourceName, "?"); idx != -1 {
		dbPath = dataSourceName[:idx]
	}

	// Create the directory if it doesn't exist (cross-platform)
	dbDir := filepath.Dir(dbPath)
	if dbDir != "." && dbDir != "" {
		if err := utils.CreateFolder(dbDir); err != nil {
			return nil, fmt.Errorf("error creating database directory: %s", err)
		}
	}

	// Add busy timeout param to DSN (milliseconds)
	if !strings.Contains(dataSourceName, "_busy_timeout") {
		if strings.Contains(dataSourceName, "?") {
			dataSourceName += "&_busy_timeout=5000" // 5 seconds
		} else {
			dataSourceName += "?_busy_timeout=5000"
		}
	}

	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("error connecting to SQLite: %s", err)
	}

	err = createTables(db)
	if err != nil {
		return nil, fmt.Errorf("error creating tables: %s", err)
	}

	return &SQLiteClient{db: db}, nil
}

// createTables creates the required tables if they don't exist
func createTables(db *sql.DB) error {
	createDetectionsTable := `
    CREATE TABLE IF NOT EXISTS detections (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        timestamp DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
        detected INTEGER NOT NULL DEFAULT 0,
        target_label TEXT,
        target_score REAL NOT NULL DEFAULT 0,
        threshold REAL NOT NULL DEFAULT 0,
        window INTEGER NOT NULL DEFAULT 0,
        latency_ms REAL NOT NULL DEFAULT 0,
        scores TEXT NOT NULL,
        source TEXT,
        metadata TEXT
    );
    CREATE INDEX IF NOT EXISTS idx_detections_timestamp ON detections(timestamp);
    CREATE INDEX IF NOT EXISTS idx_detections_detected ON detections(detected);
    `

	_, err := db.Exec(createDetectionsTable)
	if err != nil {
		return fmt.Errorf("error creating detections table: %s", err)
	}

	return nil
}

func (db *SQLiteClient) Close() error {
	if db.db != nil {
		return db.db.Close()
	}
	return nil
}

// StoreDetection stores a detection in the database
func (db *SQLiteClient) StoreDetection(detection *models.Detection) error {
	var metadataJSON *string
	if detection.Metadata != nil {
		metadataBytes, err := json.Marshal(detection.Metadata)
		if err != nil {
			return fmt.Errorf("error marshaling metadata: %s", err)
		}
		metadataStr := string(metadataBytes)
		metadataJSON = &metadataStr
	}

	detectedInt := 0
	if detection.Detected {
		detectedInt = 1
	}

	_, err := db.db.Exec(`
		INSERT INTO detections (
			timestamp, detected, target_label, target_score, threshold,
			window, latency_ms, scores, source, metadata
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		detection.Timestamp,
		detectedInt,
		detection.TargetLabel,
		detection.TargetScore,
		detection.Threshold,
		detection.Window,
		detection.LatencyMs,
		string(detection.Scores),
		detection.Source,
		metadataJSON,
	)
	if err != nil {
		return fmt.Errorf("error storing detection: %s", err)
	}
	return nil
}

func scanDetections(rows *sql.Rows) ([]models.Detection, error) {
	var detections []models.Detection
	for rows.Next() {
		var d models.Detection
		var detectedInt int
		var scoresJSON string
		var metadataJSON *string

		err := rows.Scan(
			&d.ID,
			&d.Timestamp,
			&detectedInt,
			&d.TargetLabel,
			&d.TargetScore,
			&d.Threshold,
			&d.Window,
			&d.LatencyMs,
			&scoresJSON,
			&d.Source,
			&metadataJSON,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning detection: %s", err)
		}

		d.Detected = detectedInt == 1
		d.Scores = json.RawMessage(scoresJSON)

		if metadataJSON != nil {
			err = json.Unmarshal([]byte(*metadataJSON), &d.Metadata)
			if err != nil {
				return nil, fmt.Errorf("error unmarshaling metadata: %s", err)
			}
		}

		detections = append(detections, d)
	}

	return detections, nil
}

// GetAllDetections retrieves all detections from the database
func (db *SQLiteClient) GetAllDetections() ([]models.Detection, error) {
	rows, err := db.db.Query(`
		SELECT id, timestamp, detected, target_label, target_score, threshold,
		       window, latency_ms, scores, source, metadata
		FROM detections
		ORDER BY timestamp DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("error querying detections: %s", err)
	}
	defer rows.Close()

	return scanDetections(rows)
}

// GetDetectionsSince retrieves detections newer than the given time
func (db *SQLiteClient) GetDetectionsSince(since time.Time) ([]models.Detection, error) {
	rows, err := db.db.Query(`
		SELECT id, timestamp, detected, target_label, target_score, threshold,
		       window, latency_ms, scores, source, metadata
		FROM detections
		WHERE timestamp >= ?
		ORDER BY timestamp DESC
	`, since)
	if err != nil {
		return nil, fmt.Errorf("error querying detections since %s: %s", since, err)
	}
	defer rows.Close()

	return scanDetections(rows)
}

// TotalDetections counts stored detections, optionally only positive ones
func (db *SQLiteClient) TotalDetections(onlyDetected bool) (int, error) {
	query := "SELECT COUNT(*) FROM detections"
	if onlyDetected {
		query += " WHERE detected = 1"
	}

	var count int
	err := db.db.QueryRow(query).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("error counting detections: %s", err)
	}
	return count, nil
}

// DeleteCollection deletes a collection (table) from the database
func (db *SQLiteClient) DeleteCollection(collectionName string) error {
	_, err := db.db.Exec(fmt.Sprintf("DROP TABLE IF EXISTS %s", collectionName))
	if err != nil {
		return fmt.Errorf("error deleting collection: %v", err)
	}
	return nil
}
