package instance

import "os"

// GetID names the running process for logs. Heroku sets DYNO, containers set HOSTNAME.
func GetID() string {
	for _, key := range []string{"DYNO", "HOSTNAME"} {
		if id := os.Getenv(key); id != "" {
			return id
		}
	}
	return "local"
}
