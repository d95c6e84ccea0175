package models

import "time"

// BotStatus values are reported by the meeting-bot provider and stored verbatim.
const (
	BotStatusJoiningCall        = "joining_call"
	BotStatusInWaitingRoom      = "in_waiting_room"
	BotStatusInCallNotRecording = "in_call_not_recording"
	BotStatusInCallRecording    = "in_call_recording"
	BotStatusCallEnded          = "call_ended"
	BotStatusDone               = "done"
	BotStatusFatal              = "fatal"
)

// BotStatusActive reports whether a bot in this status can still change on the provider side.
// Unknown codes count as active so they get refreshed.
func BotStatusActive(status string) bool {
	switch status {
	case BotStatusDone, BotStatusFatal, BotStatusCallEnded:
		return false
	}
	return true
}

// Bot is one provider bot instance dispatched to a meeting (recall_bots).
type Bot struct {
	ID           int64     `json:"id"`
	RecallBotID  string    `json:"recall_bot_id"`
	MeetingURL   string    `json:"meeting_url"`
	BotName      string    `json:"bot_name"`
	Host         string    `json:"host"`
	MeetingTitle string    `json:"meeting_title"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Active reports whether the bot's status may still change.
func (b Bot) Active() bool { return BotStatusActive(b.Status) }
