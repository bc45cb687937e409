/*
 * S370 - Command parser.
 *
 * Copyright 2024, Richard Cornwell
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

// Package parser implements the REPL command language: attach, detach,
// set, unset, show and reset against whatever device model is registered
// at a device address. There is no CPU to stop/start/IPL in this module,
// so the command set is purely device-oriented.
package parser

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"unicode"

	command "github.com/rcornwell/ibm360periph/command/command"
	ch "github.com/rcornwell/ibm360periph/emu/sys_channel"
)

type cmd struct {
	name     string // Command name.
	min      int    // Minimum match size.
	process  func(*cmdLine) (bool, error)
	complete func(*cmdLine) []string
}

type cmdLine struct {
	line string // Current command.
	pos  int    // Position in line.
}

var cmdList = []cmd{
	{name: "attach", min: 2, process: attach, complete: attachComplete},
	{name: "detach", min: 2, process: detach, complete: func(line *cmdLine) []string {
		return line.matchDevice(0, true)
	}},
	{name: "set", min: 3, process: set, complete: setComplete},
	{name: "unset", min: 4, process: unset, complete: setComplete},
	{name: "show", min: 2, process: show, complete: showComplete},
	{name: "reset", min: 5, process: reset, complete: func(line *cmdLine) []string {
		return line.matchDevice(0, true)
	}},
	{name: "quit", min: 4, process: quit},
}

// ProcessCommand executes the command line given. Returns true if the
// REPL should exit.
func ProcessCommand(commandLine string) (bool, error) {
	line := cmdLine{line: commandLine}
	name := line.getWord(false)

	match := matchList(name)
	if len(match) == 0 {
		return false, errors.New("command not found: " + name)
	}

	if len(match) > 1 {
		return false, errors.New("unique command not found: " + name)
	}

	return match[0].process(&line)
}

// CompleteCmd is called to complete a command line, during line editing.
func CompleteCmd(commandLine string) []string {
	line := cmdLine{line: commandLine}
	name := line.getWord(false)

	// We have a command, let it try and complete it.
	if !line.isEOL() && line.line[line.pos] == ' ' {
		line.skipSpace()
		match := matchList(name)
		if len(match) == 0 || len(match) > 1 {
			return nil
		}

		if match[0].complete != nil {
			return match[0].complete(&line)
		}
		return nil
	}

	matches := []string{}
	for _, m := range cmdList {
		if strings.HasPrefix(m.name, name) {
			matches = append(matches, m.name)
		}
	}
	return matches
}

// matchCommand checks if a command matches at least to minimum length.
func matchCommand(match cmd, command string) bool {
	if len(command) > len(match.name) {
		return false
	}
	for i := range command {
		if match.name[i] != command[i] {
			return false
		}
	}
	return len(command) >= match.min
}

// matchList checks if a command matches one of the registered commands.
func matchList(command string) []cmd {
	if command == "" {
		return []cmd{}
	}

	var match []cmd
	for _, m := range cmdList {
		if matchCommand(m, command) {
			match = append(match, m)
		}
	}
	return match
}

// matchDevice completes a device name against the registered device
// addresses (emu/sys_channel.ListDevices). When all is false, only
// devices whose command interface offers an option valid for cmdType are
// suggested.
func (line *cmdLine) matchDevice(cmdType int, all bool) []string {
	leading := line.line[:line.pos]
	typed := ""
	pos := line.pos
	for pos < len(line.line) && line.line[pos] != ' ' && line.line[pos] != '#' {
		typed += string(line.line[pos])
		pos++
	}

	devices := []string{}
	for _, devNum := range ch.ListDevices() {
		str := strconv.FormatUint(uint64(devNum), 16)
		if !strings.HasPrefix(str, typed) {
			continue
		}

		if all {
			devices = append(devices, leading+str+" ")
			continue
		}

		dev, err := ch.GetCommand(devNum)
		if err != nil {
			continue
		}
		for _, opt := range dev.Options("") {
			if (opt.OptionValid & cmdType) != 0 {
				devices = append(devices, leading+str+" ")
				break
			}
		}
	}
	return devices
}

// getDevice parses a device number off the line and returns its command
// interface.
func (line *cmdLine) getDevice() (command.Command, error) {
	devName := line.getDevNum()
	devNum, err := strconv.ParseUint(devName, 16, 12)
	if err != nil {
		return nil, errors.New("device must be a number: " + devName)
	}
	return ch.GetCommand(uint16(devNum))
}

// scanDevice completes a device-style command: a device name followed by
// device-specific options.
func (line *cmdLine) scanDevice(cmdType int) []string {
	devices := line.matchDevice(cmdType, false)
	if len(devices) != 1 {
		return devices
	}

	devName := line.getDevNum()
	devNum, err := strconv.ParseUint(devName, 16, 12)
	if err != nil {
		slog.Debug("unable to convert " + devName + ": " + err.Error())
		return []string{}
	}

	device, err := ch.GetCommand(uint16(devNum))
	if err != nil {
		slog.Debug("unable to find device: " + devName + ": " + err.Error())
		return []string{}
	}

	return line.scanOptions(device, cmdType)
}

// skipSpace skips forward over the line until a none whitespace character.
func (line *cmdLine) skipSpace() {
	for line.pos < len(line.line) && unicode.IsSpace(rune(line.line[line.pos])) {
		line.pos++
	}
}

// isEOL checks if at end of line (or the start of a trailing comment).
func (line *cmdLine) isEOL() bool {
	if line.pos >= len(line.line) {
		return true
	}
	return line.line[line.pos] == '#'
}

// getNext advances and returns the next character in line, 0 if EOL.
func (line *cmdLine) getNext() byte {
	line.pos++
	if line.isEOL() {
		return 0
	}
	return line.line[line.pos]
}

// getPeek peeks at the next character without consuming it.
func (line *cmdLine) getPeek() byte {
	if (line.pos + 1) >= len(line.line) {
		return 0
	}
	return line.line[line.pos+1]
}

// parseQuoteString parses a string that is "string" or just string.
func (line *cmdLine) parseQuoteString() (string, bool) {
	inQuote := false
	value := ""

	if line.getPeek() == '"' {
		inQuote = true
		_ = line.getNext()
	}

	for {
		by := line.getNext()
		if by == '"' && inQuote {
			by = line.getNext()
			if by != '"' {
				return value, true
			}
		}

		space := unicode.IsSpace(rune(by))
		if !inQuote && (space || by == 0) {
			return value, true
		}

		value += string(by)
		if line.isEOL() {
			return value, !inQuote
		}
	}
}

// getDevNum parses a device number.
func (line *cmdLine) getDevNum() string {
	line.skipSpace()
	if line.isEOL() {
		return ""
	}

	value := ""
	by := line.line[line.pos]
	for {
		if !unicode.IsLetter(rune(by)) && !unicode.IsDigit(rune(by)) {
			return ""
		}
		value += string([]byte{by})
		by = line.getNext()
		if line.isEOL() || unicode.IsSpace(rune(by)) {
			break
		}
	}
	return strings.ToLower(value)
}

// getWord parses an option/command name, stopping at '=' when equal is true.
func (line *cmdLine) getWord(equal bool) string {
	line.skipSpace()
	if line.isEOL() {
		return ""
	}

	pos := line.pos
	value := ""
	by := line.line[line.pos]
	for {
		if !unicode.IsLetter(rune(by)) {
			line.pos = pos
			return ""
		}
		value += string([]byte{by})
		by = line.getNext()
		if line.isEOL() || unicode.IsSpace(rune(by)) {
			break
		}
		if by == '=' {
			if equal {
				break
			}
			line.pos = pos
			return ""
		}
	}
	return strings.ToLower(value)
}

// matchOption matches an option name against a device's option list.
func matchOption(option string, optList []command.Options, cmdType int) command.Options {
	for _, opt := range optList {
		if (opt.OptionValid & cmdType) == 0 {
			continue
		}
		if opt.Name == option {
			return opt
		}
	}
	return command.Options{OptionType: -1}
}

// getOption parses a single option off the line.
func (line *cmdLine) getOption(opts []command.Options, cmdType int) (*command.CmdOption, error) {
	name := line.getWord(true)
	opt := command.CmdOption{Name: name}

	if name == "" {
		if cmdType == command.ValidAttach {
			if !line.isEOL() && !unicode.IsSpace(rune(line.line[line.pos])) {
				line.pos--
				file, ok := line.parseQuoteString()
				if !ok {
					return nil, errors.New("invalid option")
				}
				opt.Name = "file"
				opt.EqualOpt = file
			}
		}
		return &opt, nil
	}

	match := matchOption(name, opts, cmdType)
	switch match.OptionType {
	case -1:
		return nil, errors.New("unknown option: " + name)
	case command.OptionSwitch:
		if line.isEOL() || line.line[line.pos] != ' ' {
			break
		}
		return nil, errors.New("switch option can't have arguments: " + name)
	case command.OptionFile:
		file, ok := line.parseQuoteString()
		if !ok {
			return nil, errors.New("file name not valid: " + name)
		}
		opt.EqualOpt = file
	case command.OptionNumber:
		if line.isEOL() || line.line[line.pos] != '=' {
			return nil, errors.New("number options must be followed by number: " + name)
		}
		numStr := line.getWord(false)
		num, err := strconv.ParseUint(numStr, 10, 32)
		if err != nil {
			return nil, errors.New("number options must be followed by number: " + name)
		}
		opt.Value = int(num)
	case command.OptionList:
		if line.isEOL() || line.line[line.pos] != '=' {
			return nil, errors.New("number options must be followed by number: " + name)
		}
		_ = line.getNext()
		listStr := line.getWord(false)
		opt.EqualOpt = listStr
		for _, mod := range match.OptionList {
			if strings.ToLower(mod) == listStr {
				return &opt, nil
			}
		}
		return nil, errors.New("option not valid for type: " + name)
	default:
		return nil, errors.New("invalid option type: " + name)
	}
	return &opt, nil
}

// getShowOptions parses the options given to a show command.
func (line *cmdLine) getShowOptions(device command.Command) ([]*command.CmdOption, error) {
	optlist := []*command.CmdOption{}
	opts := device.Options("")
	for {
		name := line.getDevNum()
		if line.isEOL() {
			break
		}
		match := matchOption(name, opts, command.ValidShow)
		if match.OptionType == -1 {
			return nil, errors.New("invalid option")
		}
		optlist = append(optlist, &command.CmdOption{Name: name})
	}
	return optlist, nil
}

// getOptions scans and returns the list of options on the line.
func (line *cmdLine) getOptions(device command.Command, cmdType int) ([]*command.CmdOption, error) {
	optlist := []*command.CmdOption{}
	opts := device.Options("")
	for {
		opt, err := line.getOption(opts, cmdType)
		if err != nil {
			return optlist, err
		}
		if opt != nil && opt.Name != "" {
			optlist = append(optlist, opt)
		} else {
			break
		}
	}
	return optlist, nil
}

// scanList scans an option-list element.
func (line *cmdLine) scanList() string {
	value := ""
	for {
		if line.isEOL() {
			return strings.ToLower(value)
		}
		by := line.line[line.pos]
		if unicode.IsSpace(rune(by)) {
			return value
		}
		line.pos++
		if !unicode.IsLetter(rune(by)) {
			return ""
		}
		value += string([]byte{by})
	}
}

// scanOpt scans a string for a matching option.
func scanOpt(name string, opts []command.Options, cmdType int) []command.Options {
	matches := []command.Options{}
	for _, opt := range opts {
		if (opt.OptionValid & cmdType) == 0 {
			continue
		}
		if opt.Name == name {
			return []command.Options{{Name: opt.Name, OptionType: opt.OptionType, OptionList: opt.OptionList}}
		}
		if name == "" || strings.HasPrefix(opt.Name, name) {
			matches = append(matches, command.Options{Name: opt.Name, OptionType: opt.OptionType, OptionList: opt.OptionList})
		}
	}
	return matches
}

// scanOption completes a single option's value.
func (line *cmdLine) scanOption(opt command.Options) ([]string, bool) {
	skip := false
	str := ""
	switch opt.OptionType {
	case command.OptionSwitch:
	case command.OptionFile:
		str, skip = line.parseQuoteString()
	case command.OptionNumber:
		str = line.getWord(false)
		skip = str != ""
	case command.OptionList:
		modName := line.scanList()
		mods := []string{}
		for _, mod := range opt.OptionList {
			mod = strings.ToLower(mod)
			if modName == mod {
				return []string{mod + " "}, true
			}
			if modName == "" || strings.HasPrefix(mod, modName) {
				mods = append(mods, mod+" ")
			}
		}
		return mods, false
	}
	return []string{str}, skip
}

// scanOptions scans to find the last (possibly incomplete) option.
func (line *cmdLine) scanOptions(device command.Command, cmdType int) []string {
	opts := device.Options("")
	matches := []string{}
	for {
		line.skipSpace()
		leading := line.line[:line.pos]
		if line.pos == (len(line.line) - 1) {
			leading = line.line
		}
		name := line.getWord(true)

		matchOpts := scanOpt(name, opts, cmdType)
		line.skipSpace()
		if len(matchOpts) > 1 {
			leading = line.line[:line.pos-len(name)]
			for _, opt := range matchOpts {
				matches = append(matches, leading+opt.Name)
			}
			return matches
		}
		eq := " "
		if matchOpts[0].OptionType != command.OptionSwitch {
			eq = "="
		}

		if matchOpts[0].Name != name {
			return []string{leading + matchOpts[0].Name + eq}
		}

		if matchOpts[0].OptionType != command.OptionSwitch {
			if line.pos == len(line.line) {
				line.line += eq
			}
			if line.line[line.pos] == eq[0] {
				line.pos++
			}
		}
		leading = line.line[:line.pos]
		optMatch, skip := line.scanOption(matchOpts[0])
		if !skip {
			for _, opt := range optMatch {
				matches = append(matches, leading+opt)
			}
			return matches
		}
	}
}

// Handle attach commands.
func attach(line *cmdLine) (bool, error) {
	slog.Info("Command Attach")

	device, err := line.getDevice()
	if err != nil {
		return false, err
	}

	optlist, err := line.getOptions(device, command.ValidAttach)
	if err != nil {
		return false, err
	}
	if len(optlist) == 0 {
		return false, errors.New("no options give to attach command")
	}
	return false, device.Attach(optlist)
}

func attachComplete(line *cmdLine) []string {
	return line.scanDevice(command.ValidAttach)
}

// Handle detach command.
func detach(line *cmdLine) (bool, error) {
	slog.Info("Command Detach")

	device, err := line.getDevice()
	if err != nil {
		return false, err
	}
	return false, device.Detach()
}

// Handle set commands.
func set(line *cmdLine) (bool, error) {
	slog.Info("Command Set")

	device, err := line.getDevice()
	if err != nil {
		return false, err
	}

	optlist, err := line.getOptions(device, command.ValidSet)
	if err != nil {
		return false, err
	}
	if len(optlist) == 0 {
		return false, errors.New("no options give to set command")
	}
	return false, device.Set(false, optlist)
}

func setComplete(line *cmdLine) []string {
	return line.scanDevice(command.ValidSet)
}

// Handle unset commands.
func unset(line *cmdLine) (bool, error) {
	slog.Info("Command Unset")

	device, err := line.getDevice()
	if err != nil {
		return false, err
	}

	optlist, err := line.getOptions(device, command.ValidSet)
	if err != nil {
		return false, err
	}
	if len(optlist) == 0 {
		return false, errors.New("no options give to unset command")
	}
	return false, device.Set(true, optlist)
}

// Process the show command. With no device number (or "all"), shows every
// configured device.
func show(line *cmdLine) (bool, error) {
	slog.Info("Command Show")

	devName := line.getDevNum()
	if devName == "" && line.isEOL() {
		optList := []*command.CmdOption{}
		for _, devNum := range ch.ListDevices() {
			device, err := ch.GetCommand(devNum)
			if err != nil {
				continue
			}
			out, err := device.Show(optList)
			if err != nil {
				continue
			}
			fmt.Println(out)
		}
		return false, nil
	}

	devNum, err := strconv.ParseUint(devName, 16, 12)
	if err != nil {
		return false, errors.New("show device must be number: " + devName)
	}

	device, err := ch.GetCommand(uint16(devNum))
	if err != nil {
		return false, err
	}

	optlist, err := line.getShowOptions(device)
	if err != nil {
		return false, err
	}

	out, err := device.Show(optlist)
	if err != nil {
		return false, err
	}

	fmt.Println(out)
	return false, nil
}

func showComplete(line *cmdLine) []string {
	return line.scanDevice(command.ValidShow)
}

// Reset a device, or every configured device.
func reset(line *cmdLine) (bool, error) {
	slog.Info("Command Reset")

	devName := line.getDevNum()
	if devName == "" && line.isEOL() {
		ch.ResetChannels()
		return false, nil
	}

	devNum, err := strconv.ParseUint(devName, 16, 12)
	if err != nil {
		return false, errors.New("reset device must be number: " + devName)
	}

	device, err := ch.GetDevice(uint16(devNum))
	if err != nil {
		return false, err
	}
	device.InitDev()
	return false, nil
}

// Handle commands that quit the simulator.
func quit(_ *cmdLine) (bool, error) {
	slog.Info("Command Quit")
	return true, nil
}
