package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/five82/labbcat"
)

// linePrompter asks for credentials on out and reads them from in, one per
// line. Input is not masked.
func linePrompter(in io.Reader, out io.Writer) labbcat.Prompter {
	reader := bufio.NewReader(in)
	readLine := func(ctx context.Context, label string) (string, error) {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		fmt.Fprint(out, label)
		line, err := reader.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			if errors.Is(err, io.EOF) {
				return "", errors.New("no credentials entered")
			}
			return "", err
		}
		return strings.TrimRight(line, "\r\n"), nil
	}
	return labbcat.PrompterFunc(func(ctx context.Context, serverURL string) (string, string, error) {
		fmt.Fprintf(out, "Credentials for %s\n", serverURL)
		username, err := readLine(ctx, "Username: ")
		if err != nil {
			return "", "", err
		}
		password, err := readLine(ctx, "Password: ")
		if err != nil {
			return "", "", err
		}
		return username, password, nil
	})
}
