package model

import "time"

// Статусы запуска команды.
const (
	// JobStatusSuccess — команда завершилась с нулевым кодом возврата.
	JobStatusSuccess = "success"
	// JobStatusFailure — команда завершилась с ненулевым кодом возврата.
	JobStatusFailure = "failure"
	// JobStatusTimeout — команда была прервана по таймауту.
	JobStatusTimeout = "timeout"
)

// JobRun — запись одного запуска служебной команды.
type JobRun struct {
	// RunID — UUID запуска
	RunID string `json:"run_id"`
	// JobName — имя команды из конфигурации
	JobName string `json:"job_name"`
	// Status — success, failure или timeout
	Status string `json:"status"`
	// ExitCode — код возврата процесса; nil, если процесс был убит по таймауту
	ExitCode *int `json:"exit_code,omitempty"`
	// Stdout — захваченный stdout, усечённый до лимита
	Stdout string `json:"stdout"`
	// Stderr — захваченный stderr, усечённый до лимита
	Stderr string `json:"stderr"`
	// StartedAt — момент запуска
	StartedAt time.Time `json:"started_at"`
	// FinishedAt — момент завершения (или прерывания)
	FinishedAt time.Time `json:"finished_at"`
}
