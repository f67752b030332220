package knowledge

import (
	"context"
	"database/sql"
	"fmt"

	"cattle-expert/internal/platform/database"
)

// Repository persists a knowledge base in the tables created by migrations/.
type Repository interface {
	Source
	Save(ctx context.Context, kb *KnowledgeBase) error
}

type sqlRepo struct {
	db     *sql.DB
	driver database.Driver
}

func NewRepository(db *sql.DB, driver database.Driver) Repository {
	return &sqlRepo{db: db, driver: driver}
}

func (r *sqlRepo) Load(ctx context.Context) (*KnowledgeBase, error) {
	kb := &KnowledgeBase{
		Symptoms: []Symptom{},
		Diseases: []Disease{},
	}

	rows, err := r.db.QueryContext(ctx, `SELECT code, name FROM symptoms ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to query symptoms: %w", err)
	}
	for rows.Next() {
		var s Symptom
		if err := rows.Scan(&s.Code, &s.Name); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan symptom: %w", err)
		}
		kb.Symptoms = append(kb.Symptoms, s)
	}
	if err := closeRows(rows); err != nil {
		return nil, fmt.Errorf("failed to read symptoms: %w", err)
	}

	rows, err = r.db.QueryContext(ctx, `SELECT code, name FROM diseases ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to query diseases: %w", err)
	}
	index := make(map[string]int)
	for rows.Next() {
		var d Disease
		if err := rows.Scan(&d.Code, &d.Name); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan disease: %w", err)
		}
		index[d.Code] = len(kb.Diseases)
		kb.Diseases = append(kb.Diseases, d)
	}
	if err := closeRows(rows); err != nil {
		return nil, fmt.Errorf("failed to read diseases: %w", err)
	}

	rows, err = r.db.QueryContext(ctx,
		`SELECT disease_code, symptom_code FROM disease_symptoms ORDER BY disease_code, position`)
	if err != nil {
		return nil, fmt.Errorf("failed to query disease rules: %w", err)
	}
	for rows.Next() {
		var diseaseCode, symptomCode string
		if err := rows.Scan(&diseaseCode, &symptomCode); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan disease rule: %w", err)
		}
		i, ok := index[diseaseCode]
		if !ok {
			rows.Close()
			return nil, fmt.Errorf("rule row references unknown disease %q", diseaseCode)
		}
		kb.Diseases[i].Symptoms = append(kb.Diseases[i].Symptoms, symptomCode)
	}
	if err := closeRows(rows); err != nil {
		return nil, fmt.Errorf("failed to read disease rules: %w", err)
	}

	if len(kb.Symptoms) == 0 && len(kb.Diseases) == 0 {
		return nil, ErrEmpty
	}
	if err := Validate(kb); err != nil {
		return nil, err
	}
	return kb, nil
}

// Save replaces the stored knowledge base in a single transaction.
func (r *sqlRepo) Save(ctx context.Context, kb *KnowledgeBase) error {
	if err := Validate(kb); err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"disease_symptoms", "diseases", "symptoms"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	p := r.driver.Placeholder
	insertSymptom := fmt.Sprintf(`INSERT INTO symptoms (code, name, position) VALUES (%s, %s, %s)`, p(1), p(2), p(3))
	insertDisease := fmt.Sprintf(`INSERT INTO diseases (code, name, position) VALUES (%s, %s, %s)`, p(1), p(2), p(3))
	insertRule := fmt.Sprintf(`INSERT INTO disease_symptoms (disease_code, symptom_code, position) VALUES (%s, %s, %s)`, p(1), p(2), p(3))

	for i, s := range kb.Symptoms {
		if _, err := tx.ExecContext(ctx, insertSymptom, s.Code, s.Name, i); err != nil {
			return fmt.Errorf("failed to insert symptom %s: %w", s.Code, err)
		}
	}
	for i, d := range kb.Diseases {
		if _, err := tx.ExecContext(ctx, insertDisease, d.Code, d.Name, i); err != nil {
			return fmt.Errorf("failed to insert disease %s: %w", d.Code, err)
		}
		for j, code := range d.Symptoms {
			if _, err := tx.ExecContext(ctx, insertRule, d.Code, code, j); err != nil {
				return fmt.Errorf("failed to insert rule %s/%s: %w", d.Code, code, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit knowledge base: %w", err)
	}
	return nil
}

func closeRows(rows *sql.Rows) error {
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	return rows.Close()
}
