package config

import "time"

const (
	KindPostgres = "postgres"
	KindRemote   = "remote"
	KindMemory   = "memory"
)

type Config struct {
	Kind             string
	DBDsn            string
	OrderServiceAddr string
	OrderTimeout     time.Duration
}
