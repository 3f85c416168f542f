package model

// LeaderboardEntry is one row of the high score leaderboard
type LeaderboardEntry struct {
	Rank      int
	PlayerID  PlayerID
	Username  string
	Avatar    string
	HighScore int64
	Level     int64
	Coins     int64
}

// Dashboard aggregates figures for the admin overview
type Dashboard struct {
	TotalPlayers  int
	OnlinePlayers int
	TotalGames    int
	MaxScore      int64
}
