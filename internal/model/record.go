package model

import "time"

// DownloadRecord is the persisted state of one (user, video) pair
type DownloadRecord struct {
	UserID    int64
	VideoID   string
	Title     string
	Extension string
	Status    RecordStatus
	FilePath  string // artifact location; empty unless Status is downloaded
	UpdatedAt time.Time
}

// User is a chat platform identity known to the bot
type User struct {
	UserID      int64
	DisplayName string
	Language    string
}

// RegistryStats summarizes registry contents for admins
type RegistryStats struct {
	Users     int64
	Downloads map[RecordStatus]int64
}

// TotalDownloads returns the number of link rows regardless of status
func (s *RegistryStats) TotalDownloads() int64 {
	var total int64
	for _, n := range s.Downloads {
		total += n
	}
	return total
}
