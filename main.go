/*
 * S370 - Main process.
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

package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	getopt "github.com/pborman/getopt/v2"
	"github.com/rcornwell/ibm360periph/command/reader"
	config "github.com/rcornwell/ibm360periph/config/configparser"
	core "github.com/rcornwell/ibm360periph/emu/core"
	master "github.com/rcornwell/ibm360periph/emu/master"
	syschannel "github.com/rcornwell/ibm360periph/emu/sys_channel"
	telnet "github.com/rcornwell/ibm360periph/telnet"
	logger "github.com/rcornwell/ibm360periph/util/logger"

	_ "github.com/rcornwell/ibm360periph/config/debugconfig"
	_ "github.com/rcornwell/ibm360periph/emu/comctl"
	_ "github.com/rcornwell/ibm360periph/emu/model2540R"
)

var Logger *slog.Logger

func main() {
	optConfig := getopt.StringLong("config", 'c', "S370.cfg", "Configuration file")
	optLogFile := getopt.StringLong("log", 'l', "", "Log file")
	//	optDeck := getopt.StringLong("deck", 'd', "", "Deck to load")
	optHelp := getopt.BoolLong("help", 'h', "Help")
	getopt.Parse()

	if *optHelp {
		getopt.Usage()
		os.Exit(0)
	}

	var file *os.File
	if optLogFile != nil {
		file, _ = os.Create(*optLogFile)
	}
	programLevel := new(slog.LevelVar)
	programLevel.Set(slog.LevelDebug)
	Logger = slog.New(logger.NewHandler(file, &slog.HandlerOptions{Level: programLevel, AddSource: false}, new(bool)))
	slog.SetDefault(Logger)

	Logger.Info("S370 Started")
	if optConfig == nil {
		Logger.Error("Please specify a configuration file")
		os.Exit(0)
	}

	_, err := os.Stat(*optConfig)
	if os.IsNotExist(err) {
		Logger.Error("Configuration file ", *optConfig, " can't be found")
		os.Exit(0)
	}

	syschannel.InitializeChannels()
	err = config.LoadConfigFile(*optConfig)
	if err != nil {
		Logger.Error(err.Error())
		os.Exit(0)
	}

	masterChannel := make(chan master.Packet)

	// Create the event loop that wires telnet traffic to device models.
	sim := core.New(masterChannel)

	// Configure I/O devices.
	syschannel.ResetChannels()

	// Start telnet servers.
	err = telnet.Start(masterChannel)
	if err != nil {
		Logger.Error(err.Error())
		os.Exit(1)
	}

	// Start the event loop.
	go sim.Start()

	// Wait for a SIGINT or SIGTERM signal to gracefully shut down the server
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	quit := make(chan struct{})
	go func() {
		reader.ConsoleReader()
		close(quit)
	}()

	select {
	case <-sigChan:
		fmt.Println("Got quit signal")
	case <-quit:
		fmt.Println("Quit command received")
	}

	Logger.Info("Shutting down core")
	sim.Stop()
	Logger.Info("Shutting down server...")
	telnet.Stop()
	Logger.Info("Servers stopped.")
}
