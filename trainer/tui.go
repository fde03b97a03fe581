package main

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/oxolearn/oxo/game"
)

type model struct {
	matchesPlayed int
	wins          int
	losses        int
	ties          int
	moves         int64
	startTime     time.Time
	recentMatches []string
	updates       chan MatchUpdate
}

func initialModel(updates chan MatchUpdate) model {
	return model{
		startTime: time.Now(),
		updates:   updates,
	}
}

type TickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(time.Millisecond*100, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func (m model) Init() tea.Cmd {
	return tea.Batch(waitForUpdate(m.updates), tickCmd())
}

func waitForUpdate(updates chan MatchUpdate) tea.Cmd {
	return func() tea.Msg {
		return <-updates
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	case TickMsg:
		m.moves = totalMoves.Load()
		return m, tickCmd()
	case MatchUpdate:
		m.matchesPlayed++
		switch msg.Summary.Winner {
		case msg.Summary.Learner:
			m.wins++
		case game.PieceNone:
			m.ties++
		default:
			m.losses++
		}
		logMsg := fmt.Sprintf("Worker %d: %s as %s, steps %d, %d/%d from stats",
			msg.WorkerID,
			msg.Summary.Outcome().String(),
			msg.Summary.Learner.String(),
			msg.Summary.Steps,
			msg.Summary.Recommended,
			msg.Summary.Recommended+msg.Summary.Fallbacks)
		m.recentMatches = append([]string{logMsg}, m.recentMatches...)
		if len(m.recentMatches) > 10 {
			m.recentMatches = m.recentMatches[:10]
		}
		return m, waitForUpdate(m.updates)
	}
	return m, nil
}

func (m model) View() string {
	duration := time.Since(m.startTime)
	matchesPerSec := float64(m.matchesPlayed) / duration.Seconds()
	movesPerSec := float64(m.moves) / duration.Seconds()
	if duration.Seconds() < 1 {
		matchesPerSec = 0
		movesPerSec = 0
	}

	winRate := 0.0
	if m.matchesPlayed > 0 {
		winRate = 100 * float64(m.wins) / float64(m.matchesPlayed)
	}

	s := fmt.Sprintf("Matches Played: %d\n", m.matchesPlayed)
	s += fmt.Sprintf("W/L/T:          %d/%d/%d (%.1f%% wins)\n", m.wins, m.losses, m.ties, winRate)
	s += fmt.Sprintf("Total Moves:    %d\n", m.moves)
	s += fmt.Sprintf("Duration:       %s\n", duration.Round(time.Second))
	s += fmt.Sprintf("Matches/sec:    %.2f\n", matchesPerSec)
	s += fmt.Sprintf("Moves/sec:      %.2f\n", movesPerSec)
	s += "\nRecent matches:\n"
	for _, g := range m.recentMatches {
		s += "  " + g + "\n"
	}
	s += "\nPress q to quit.\n"
	return s
}
