package singleinstance

import (
	"fmt"
	"strings"
)

const (
	residentHost = "127.0.0.1"
	pingRequest  = "PING\n"
	pongResponse = "PONG\n"

	startVerb      = "START"
	statusSuccess  = "SUCCESS\n"
	statusError    = "ERROR\n"
	fieldSeparator = "\t"
)

// encodeRequest renders START<TAB>language<TAB>copy as one line.
func encodeRequest(r Request) string {
	lang := strings.NewReplacer("\t", " ", "\n", " ", "\r", " ").Replace(r.TargetLanguage)
	copyFlag := "0"
	if r.Copy {
		copyFlag = "1"
	}
	return strings.Join([]string{startVerb, lang, copyFlag}, fieldSeparator) + "\n"
}

func decodeRequest(line string) (Request, error) {
	fields := strings.Split(strings.TrimRight(line, "\r\n"), fieldSeparator)
	if len(fields) == 0 || fields[0] != startVerb {
		return Request{}, fmt.Errorf("unknown request %q", strings.TrimSpace(line))
	}
	var r Request
	if len(fields) > 1 {
		r.TargetLanguage = strings.TrimSpace(fields[1])
	}
	if len(fields) > 2 {
		r.Copy = fields[2] == "1"
	}
	return r, nil
}
