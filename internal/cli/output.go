package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
	w      io.Writer
}

// NewOutput creates a new Output formatter writing to w
func NewOutput(format string, w io.Writer) *Output {
	return &Output{format: format, w: w}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		o.printJSON(map[string]string{"message": msg})
	} else {
		fmt.Fprintln(o.w, msg)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case Player:
		o.printPlayer(v)
	case AuthResult:
		o.printAuthResult(v)
	case Profile:
		o.printProfile(v)
	case SessionResult:
		o.printSessionResult(v)
	case Leaderboard:
		o.printLeaderboard(v)
	case Dashboard:
		o.printDashboard(v)
	case PlayerList:
		o.printPlayerList(v)
	case HealthResult:
		fmt.Fprintf(o.w, "Status: %s\n", v.Status)
	case StatsReset:
		fmt.Fprintf(o.w, "Reset stats for %d players\n", v.PlayersReset)
	case SessionsCleared:
		fmt.Fprintf(o.w, "Removed %d game sessions\n", v.SessionsRemoved)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

// Player response type (matches API)
type Player struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email,omitempty"`
	Avatar    string    `json:"avatar"`
	IsAdmin   bool      `json:"is_admin,omitempty"`
	IsOnline  bool      `json:"is_online"`
	CreatedAt time.Time `json:"created_at"`
	LastLogin time.Time `json:"last_login"`
}

// AuthResult combines player and token
type AuthResult struct {
	Player       Player    `json:"player"`
	SessionToken string    `json:"session_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Stats response type
type Stats struct {
	GamesPlayed   int64 `json:"games_played"`
	HighScore     int64 `json:"high_score"`
	TotalPlayTime int64 `json:"total_play_time"`
	Coins         int64 `json:"coins"`
	Experience    int64 `json:"experience"`
	Level         int64 `json:"level"`
}

// Profile response type
type Profile struct {
	Player Player `json:"player"`
	Stats  Stats  `json:"stats"`
}

// SessionResult response type
type SessionResult struct {
	Stats         Stats  `json:"stats"`
	LeveledUp     bool   `json:"leveled_up"`
	PreviousLevel int64  `json:"previous_level"`
	SessionID     string `json:"session_id,omitempty"`
	Version       int64  `json:"version"`
}

// LeaderboardEntry response type
type LeaderboardEntry struct {
	Rank      int    `json:"rank"`
	PlayerID  string `json:"player_id"`
	Username  string `json:"username"`
	Avatar    string `json:"avatar,omitempty"`
	HighScore int64  `json:"high_score"`
	Level     int64  `json:"level"`
	Coins     int64  `json:"coins"`
}

// Leaderboard response type
type Leaderboard struct {
	Entries []LeaderboardEntry `json:"entries"`
}

// Dashboard response type
type Dashboard struct {
	TotalPlayers  int   `json:"total_players"`
	OnlinePlayers int   `json:"online_players"`
	TotalGames    int   `json:"total_games"`
	MaxScore      int64 `json:"max_score"`
}

// PlayerList response type
type PlayerList struct {
	Players []Profile `json:"players"`
}

// StatsReset response type
type StatsReset struct {
	PlayersReset int `json:"players_reset"`
}

// SessionsCleared response type
type SessionsCleared struct {
	SessionsRemoved int `json:"sessions_removed"`
}

// HealthResult response type
type HealthResult struct {
	Status string `json:"status"`
}

func (o *Output) printPlayer(p Player) {
	fmt.Fprintf(o.w, "Player: %s (%s)\n", p.Username, p.ID)
	if p.Email != "" {
		fmt.Fprintf(o.w, "Email: %s\n", p.Email)
	}
	if p.IsAdmin {
		fmt.Fprintln(o.w, "Role: admin")
	}
}

func (o *Output) printAuthResult(a AuthResult) {
	o.printPlayer(a.Player)
	fmt.Fprintf(o.w, "Token: %s\n", a.SessionToken)
}

func (o *Output) printStats(s Stats) {
	fmt.Fprintf(o.w, "Level: %d (%d xp)\n", s.Level, s.Experience)
	fmt.Fprintf(o.w, "High Score: %d\n", s.HighScore)
	fmt.Fprintf(o.w, "Games Played: %d\n", s.GamesPlayed)
	fmt.Fprintf(o.w, "Play Time: %s\n", time.Duration(s.TotalPlayTime)*time.Second)
	fmt.Fprintf(o.w, "Coins: %d\n", s.Coins)
}

func (o *Output) printProfile(p Profile) {
	o.printPlayer(p.Player)
	o.printStats(p.Stats)
}

func (o *Output) printSessionResult(r SessionResult) {
	fmt.Fprintln(o.w, "Session recorded")
	if r.LeveledUp {
		fmt.Fprintf(o.w, "Level up! %d -> %d\n", r.PreviousLevel, r.Stats.Level)
	}
	o.printStats(r.Stats)
}

func (o *Output) printLeaderboard(l Leaderboard) {
	if len(l.Entries) == 0 {
		fmt.Fprintln(o.w, "No entries yet")
		return
	}
	tw := tabwriter.NewWriter(o.w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tPLAYER\tHIGH SCORE\tLEVEL\tCOINS")
	for _, e := range l.Entries {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%d\n", e.Rank, e.Username, e.HighScore, e.Level, e.Coins)
	}
	_ = tw.Flush()
}

func (o *Output) printDashboard(d Dashboard) {
	fmt.Fprintf(o.w, "Players: %d (%d online)\n", d.TotalPlayers, d.OnlinePlayers)
	fmt.Fprintf(o.w, "Games: %d\n", d.TotalGames)
	fmt.Fprintf(o.w, "Top Score: %d\n", d.MaxScore)
}

func (o *Output) printPlayerList(l PlayerList) {
	tw := tabwriter.NewWriter(o.w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tUSERNAME\tEMAIL\tONLINE\tLEVEL\tHIGH SCORE")
	for _, p := range l.Players {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%d\t%d\n",
			p.Player.ID, p.Player.Username, p.Player.Email, p.Player.IsOnline, p.Stats.Level, p.Stats.HighScore)
	}
	_ = tw.Flush()
}
