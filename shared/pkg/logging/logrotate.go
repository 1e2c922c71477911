package logging

import "fmt"

// GenerateLogrotateConfig creates a logrotate configuration for lkagent logs.
// Install: copy the output to /etc/logrotate.d/lkagent
func GenerateLogrotateConfig() string {
	return fmt.Sprintf(`# Logrotate configuration for lkagent
# Install: sudo cp this file to /etc/logrotate.d/lkagent

%s/*.log {
    daily
    rotate 14
    compress
    delaycompress
    missingok
    notifempty
    create 0644 lkagent lkagent
    sharedscripts
}
`, "/var/log/lkagent")
}
