package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"nflqb/pipeline/internal/ingest"
	"nflqb/pipeline/internal/models"
)

type snapKey struct {
	team   string
	season int
	week   int
}

type perfKey struct {
	qb     string
	season int
	week   int
}

// memStore mirrors the repository semantics in memory
type memStore struct {
	mu         sync.Mutex
	teams      map[string]models.Team
	records    map[int][]models.DefenseGameRecord
	snapshots  map[snapKey]models.DefenseSnapshot
	qbs        map[string]*models.Quarterback
	perfs      map[perfKey]models.QBPerformance
	failWeek   int
	failReads  bool
	weekWrites []snapKey
}

func newMemStore() *memStore {
	return &memStore{
		teams:     map[string]models.Team{},
		records:   map[int][]models.DefenseGameRecord{},
		snapshots: map[snapKey]models.DefenseSnapshot{},
		qbs:       map[string]*models.Quarterback{},
		perfs:     map[perfKey]models.QBPerformance{},
	}
}

func (m *memStore) UpsertTeams(_ context.Context, teams []models.Team) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range teams {
		m.teams[t.ID] = t
	}
	return nil
}

func (m *memStore) ReplaceDefenseRecords(_ context.Context, season int, records []models.DefenseGameRecord, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[season] = append([]models.DefenseGameRecord(nil), records...)
	return nil
}

func (m *memStore) UpsertSnapshotWeek(_ context.Context, season, week int, snaps []models.DefenseSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if week == m.failWeek {
		return errors.New("write failed")
	}
	for _, s := range snaps {
		k := snapKey{s.TeamID, season, week}
		if cur, ok := m.snapshots[k]; ok {
			cur.SyncRunID = s.SyncRunID
			if cur == s {
				continue
			}
		}
		m.snapshots[k] = s
	}
	m.weekWrites = append(m.weekWrites, snapKey{season: season, week: week})
	return nil
}

func (m *memStore) LatestSnapshotBefore(_ context.Context, teamID string, season, beforeWeek int) (*models.DefenseSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failReads {
		return nil, errors.New("read failed")
	}
	var best *models.DefenseSnapshot
	for k, s := range m.snapshots {
		if k.team == teamID && k.season == season && k.week < beforeWeek {
			if best == nil || s.Week > best.Week {
				snap := s
				best = &snap
			}
		}
	}
	return best, nil
}

func (m *memStore) UpsertQuarterback(_ context.Context, qb *models.Quarterback, updateNotable bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.qbs[qb.GSISID]
	if !ok {
		stored := *qb
		stored.ID = "qb-" + qb.GSISID
		m.qbs[qb.GSISID] = &stored
		qb.ID = stored.ID
		return nil
	}
	existing.Name = qb.Name
	if updateNotable {
		existing.IsNotable = qb.IsNotable
		existing.TeamID = qb.TeamID
	}
	qb.ID = existing.ID
	return nil
}

func (m *memStore) UpsertPerformances(_ context.Context, perfs []*models.QBPerformance) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var changed int64
	for _, p := range perfs {
		k := perfKey{p.QBID, p.Season, p.Week}
		next := *p
		if cur, ok := m.perfs[k]; ok {
			cur.SyncRunID = next.SyncRunID
			if cur == next {
				continue
			}
		}
		m.perfs[k] = next
		changed++
	}
	return changed, nil
}

func (m *memStore) snapshot(team string, season, week int) (models.DefenseSnapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.snapshots[snapKey{team, season, week}]
	return s, ok
}

func (m *memStore) performance(gsis string, season, week int) (models.QBPerformance, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.perfs[perfKey{"qb-" + gsis, season, week}]
	return p, ok
}

// state copies every stored row as-is
func (m *memStore) state() (map[snapKey]models.DefenseSnapshot, map[perfKey]models.QBPerformance) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snaps := make(map[snapKey]models.DefenseSnapshot, len(m.snapshots))
	for k, s := range m.snapshots {
		snaps[k] = s
	}
	perfs := make(map[perfKey]models.QBPerformance, len(m.perfs))
	for k, p := range m.perfs {
		perfs[k] = p
	}
	return snaps, perfs
}

type fakeFeed struct {
	seasons map[int]*ingest.SeasonData
}

func (f *fakeFeed) FetchSeason(_ context.Context, season int) (*ingest.SeasonData, error) {
	data, ok := f.seasons[season]
	if !ok {
		return nil, fmt.Errorf("no data for season %d", season)
	}
	return data, nil
}

type fakeCache struct {
	mu    sync.Mutex
	weeks []snapKey
}

func (c *fakeCache) InvalidateWeek(_ context.Context, season, week int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.weeks = append(c.weeks, snapKey{season: season, week: week})
	return nil
}

// season builds SeasonData game by game
type season struct {
	data *ingest.SeasonData
	seen map[string]bool
}

func newSeason(year int) *season {
	return &season{data: &ingest.SeasonData{Season: year}, seen: map[string]bool{}}
}

type offense struct {
	team       string
	pass, rush int
	points     int
}

// game adds both defense records: each side allows the other's offense
func (s *season) game(week int, home, away offense) *season {
	outcome := func(own, against int) models.Outcome {
		switch {
		case own > against:
			return models.OutcomeWin
		case own < against:
			return models.OutcomeLoss
		}
		return models.OutcomeTie
	}
	for _, pair := range [][2]offense{{home, away}, {away, home}} {
		team, opp := pair[0], pair[1]
		s.data.Records = append(s.data.Records, models.DefenseGameRecord{
			TeamID:            team.team,
			TeamAbbr:          team.team,
			Season:            s.data.Season,
			Week:              week,
			OpponentID:        opp.team,
			PassYardsAllowed:  opp.pass,
			RushYardsAllowed:  opp.rush,
			TotalYardsAllowed: opp.pass + opp.rush,
			PointsAllowed:     opp.points,
			Outcome:           outcome(team.points, opp.points),
		})
		if !s.seen[team.team] {
			s.seen[team.team] = true
			s.data.Teams = append(s.data.Teams, models.Team{ID: team.team, Name: team.team, Abbreviation: team.team})
		}
	}
	s.data.Games++
	return s
}

func (s *season) qb(player, team, opp string, week, attempts, yards int) *season {
	s.data.QBLines = append(s.data.QBLines, models.QBGameLine{
		PlayerID:     player,
		Name:         player,
		TeamAbbr:     team,
		OpponentAbbr: opp,
		Season:       s.data.Season,
		Week:         week,
		Attempts:     attempts,
		Completions:  attempts / 2,
		PassYards:    yards,
	})
	return s
}
