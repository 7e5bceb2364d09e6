package commands

import "strconv"

// parsePIDArg parses a command's single positional pid argument,
// reporting a malformed value as an invalid-arguments failure.
func parsePIDArg(arg string) (int32, error) {
	n, err := strconv.ParseInt(arg, 10, 32)
	if err != nil {
		return 0, invalidArgs(err)
	}
	return int32(n), nil
}
