package storage

import (
	"context"
	"errors"
	"fmt"
	"skillduels/domain"
	"time"

	"github.com/jackc/pgx/v5"
)

var ErrNoParticipants = errors.New("no-participants")

// RecordMatch stores a finished match and, for completed matches, updates the
// win/loss/earnings counters of both players in the same transaction.
func (pgr *PostgresRepo) RecordMatch(ctx context.Context, rec domain.MatchRecord) error {
	if len(rec.Players) == 0 {
		return ErrNoParticipants
	}
	if rec.CompletedAt.IsZero() {
		rec.CompletedAt = time.Now()
	}

	p1 := rec.Players[0]
	var p2Id *string
	p2Score := 0
	if len(rec.Players) > 1 {
		p2Id = &rec.Players[1].UserId
		p2Score = rec.Players[1].Score
	}
	var winner *string
	if rec.WinnerId != "" {
		winner = &rec.WinnerId
	}

	err := pgx.BeginFunc(ctx, pgr.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO matches(room_code, game_mode, wager_amount, status, winner_id, player1_id, player2_id, player1_score, player2_score, completed_at)
			 VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			rec.RoomCode, rec.GameMode, rec.Wager, string(rec.Status), winner, p1.UserId, p2Id, p1.Score, p2Score, rec.CompletedAt,
		)
		if err != nil {
			return err
		}

		if rec.Status != domain.MatchCompleted || rec.WinnerId == "" {
			return nil
		}

		for _, p := range rec.Players {
			won := p.UserId == rec.WinnerId
			earned := -rec.Wager
			if won {
				earned = rec.Wager
			}
			_, err := tx.Exec(ctx,
				`UPDATE users
				 SET total_matches = total_matches + 1,
				     wins = wins + CASE WHEN $2 THEN 1 ELSE 0 END,
				     losses = losses + CASE WHEN $2 THEN 0 ELSE 1 END,
				     total_earned = total_earned + $3
				 WHERE id = $1`,
				p.UserId, won, earned,
			)
			if err != nil {
				return err
			}
		}
		return nil
	})

	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return fmt.Errorf("%w: %w", domain.UnexpectedDatabaseError, err)
	}
	return nil
}

// RecentMatches returns up to limit matches the user took part in, newest first.
func (pgr *PostgresRepo) RecentMatches(ctx context.Context, userId string, limit int) ([]domain.MatchRecord, error) {
	rows, err := pgr.pool.Query(ctx,
		`SELECT room_code, game_mode, wager_amount::float8, status, COALESCE(winner_id::text, ''),
		        player1_id::text, player1_score, COALESCE(player2_id::text, ''), player2_score, completed_at
		 FROM matches
		 WHERE player1_id = $1 OR player2_id = $1
		 ORDER BY completed_at DESC
		 LIMIT $2`,
		userId, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.UnexpectedDatabaseError, err)
	}
	defer rows.Close()

	records := make([]domain.MatchRecord, 0, limit)
	for rows.Next() {
		var (
			rec    domain.MatchRecord
			status string
			p1, p2 domain.MatchParticipant
		)
		if err := rows.Scan(&rec.RoomCode, &rec.GameMode, &rec.Wager, &status, &rec.WinnerId,
			&p1.UserId, &p1.Score, &p2.UserId, &p2.Score, &rec.CompletedAt); err != nil {
			return nil, fmt.Errorf("%w: %w", domain.UnexpectedDatabaseError, err)
		}
		rec.Status = domain.MatchStatus(status)
		rec.Players = []domain.MatchParticipant{p1}
		if p2.UserId != "" {
			rec.Players = append(rec.Players, p2)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.UnexpectedDatabaseError, err)
	}
	return records, nil
}

// TargetItems lists the objects an object-hunt round can ask for.
func (pgr *PostgresRepo) TargetItems(ctx context.Context) ([]string, error) {
	rows, err := pgr.pool.Query(ctx, `SELECT name FROM target_items ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.UnexpectedDatabaseError, err)
	}
	items, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.UnexpectedDatabaseError, err)
	}
	return items, nil
}
