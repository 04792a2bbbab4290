package iocli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Console читает построчно из in и пишет в out
// Пароль читается без эха, только если in терминал
type Console struct {
	in         *bufio.Reader
	out        io.Writer
	isTerminal func(fd int) bool
	fd         int
}

func NewStdio() *Console {
	return &Console{
		in:         bufio.NewReader(os.Stdin),
		out:        os.Stdout,
		isTerminal: term.IsTerminal,
		fd:         int(os.Stdin.Fd()),
	}
}

// NewConsole создает Console поверх произвольных потоков, например pipe
func NewConsole(in io.Reader, out io.Writer) *Console {
	return &Console{
		in:         bufio.NewReader(in),
		out:        out,
		isTerminal: func(int) bool { return false },
		fd:         -1,
	}
}

func (c *Console) Println(a ...any) {
	_, _ = fmt.Fprintln(c.out, a...)
}

func (c *Console) Printf(format string, a ...any) {
	_, _ = fmt.Fprintf(c.out, format, a...)
}

func (c *Console) ReadInput(prompt string) (string, error) {
	c.Printf("%s", prompt)
	return c.readLine()
}

func (c *Console) ReadPassword(prompt string) (string, error) {
	c.Printf("%s", prompt)
	if !c.isTerminal(c.fd) {
		return c.readLine()
	}

	pwBytes, err := term.ReadPassword(c.fd)
	c.Println("")
	if err != nil {
		return "", err
	}
	return string(pwBytes), nil
}

// readLine допускает последнюю строку без перевода строки
func (c *Console) readLine() (string, error) {
	line, err := c.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
