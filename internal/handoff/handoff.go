// Package handoff serializes and parses the inherited-listener-socket
// environment variable used for hot binary upgrades.
package handoff

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// EnvVar is the name of the environment variable carrying inherited
// listener fds across a change-binary exec.
const EnvVar = "NGINX"

// Encode serializes fds into the "<fd>;<fd>;...;" wire form, one
// trailing semicolon per fd and none omitted even for a single entry.
func Encode(fds []int) string {
	var b strings.Builder
	for _, fd := range fds {
		b.WriteString(strconv.Itoa(fd))
		b.WriteByte(';')
	}
	return b.String()
}

// Parse decodes the "<fd>;<fd>;...;" form back into a slice of fds,
// rejecting any non-numeric segment the way ngx_add_inherited_sockets
// logs and stops at the first invalid entry rather than skipping it.
func Parse(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ';' || r == ':' })
	fds := make([]int, 0, len(parts))
	for _, p := range parts {
		fd, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("handoff: invalid socket number %q in %s environment variable", p, EnvVar)
		}
		fds = append(fds, fd)
	}
	return fds, nil
}

// FromEnviron reads and parses EnvVar from the process environment. A
// missing variable is not an error: it returns (nil, false, nil),
// an absent variable is treated as "no inherited fds", not an error —
// presence, not content, is what switches a new master into
// inherited-socket mode.
func FromEnviron() (fds []int, present bool, err error) {
	v, ok := os.LookupEnv(EnvVar)
	if !ok {
		return nil, false, nil
	}
	fds, err = Parse(v)
	if err != nil {
		return nil, true, err
	}
	return fds, true, nil
}

// EnvEntry formats the "NGINX=<fd>;<fd>;...;" string to append to a
// child's environment for a change-binary exec.
func EnvEntry(fds []int) string {
	return EnvVar + "=" + Encode(fds)
}
