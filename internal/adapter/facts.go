package adapter

import (
	"fmt"
	"strings"
)

// FactCommand is a command run over SSH to learn something about a node
type FactCommand struct {
	Name    string
	Command string
	Parser  func(output string) (map[string]string, error)
}

// DefaultFactCommands are gathered from every node during verification
var DefaultFactCommands = []FactCommand{
	{
		Name:    "hostname",
		Command: "hostname -f 2>/dev/null || hostname",
		Parser:  parseHostname,
	},
	{
		Name:    "os_release",
		Command: "cat /etc/os-release 2>/dev/null",
		Parser:  parseOSRelease,
	},
	{
		Name:    "java",
		Command: "java -version 2>&1 | head -1",
		Parser:  parseJavaVersion,
	},
	{
		Name:    "hadoop",
		Command: "command -v hadoop 2>/dev/null",
		Parser:  parseHadoopPath,
	},
}

func parseHostname(output string) (map[string]string, error) {
	hostname := strings.TrimSpace(output)
	if hostname == "" {
		return nil, fmt.Errorf("empty hostname")
	}

	facts := map[string]string{"hostname": hostname}
	if idx := strings.Index(hostname, "."); idx > 0 {
		facts["hostname_short"] = hostname[:idx]
		facts["domain"] = hostname[idx+1:]
	}
	return facts, nil
}

// parseOSRelease reads KEY=value lines from /etc/os-release
func parseOSRelease(output string) (map[string]string, error) {
	osInfo := make(map[string]string)
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		osInfo[strings.TrimSpace(key)] = strings.Trim(strings.TrimSpace(value), "\"'")
	}
	if len(osInfo) == 0 {
		return nil, fmt.Errorf("no OS information found")
	}

	facts := make(map[string]string)
	for key, fact := range map[string]string{
		"ID":          "os_id",
		"VERSION_ID":  "os_version_id",
		"PRETTY_NAME": "os_pretty_name",
	} {
		if v, ok := osInfo[key]; ok {
			facts[fact] = v
		}
	}
	return facts, nil
}

// parseJavaVersion extracts the quoted version from the first line of
// `java -version`, e.g. openjdk version "1.8.0_402"
func parseJavaVersion(output string) (map[string]string, error) {
	output = strings.TrimSpace(output)
	start := strings.Index(output, `"`)
	if start < 0 {
		return map[string]string{"java": "absent"}, nil
	}
	end := strings.Index(output[start+1:], `"`)
	if end < 0 {
		return nil, fmt.Errorf("unterminated java version in %q", output)
	}
	return map[string]string{"java": output[start+1 : start+1+end]}, nil
}

func parseHadoopPath(output string) (map[string]string, error) {
	if p := strings.TrimSpace(output); p != "" {
		return map[string]string{"hadoop": p}, nil
	}
	return map[string]string{"hadoop": "absent"}, nil
}
