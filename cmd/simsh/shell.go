package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/abiosoft/ishell"
	"github.com/golang/glog"

	"rangefinder-go/services/app"
	"rangefinder-go/services/scheduler"
	"rangefinder-go/types"
)

const simKey = "$sim"

var commands = []*ishell.Cmd{
	&PressCmd,
	&ReleaseCmd,
	&ClickCmd,
	&TickCmd,
	&StepCmd,
	&AutoCmd,
	&RangeCmd,
	&AccelCmd,
	&InjectCmd,
	&PeerCmd,
	&StatusCmd,
}

// Shell wraps the ishell instance bound to a Sim.
type Shell struct {
	Shell *ishell.Shell
	Sim   *Sim
}

func newShell(sim *Sim) *Shell {
	s := &Shell{Shell: ishell.New(), Sim: sim}
	s.Shell.Set(simKey, sim)
	s.Shell.SetPrompt("rangefinder > ")
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// SimFrom gets the Sim from an ishell context.
func SimFrom(c *ishell.Context) *Sim {
	return c.Get(simKey).(*Sim)
}

// Run runs one command when args are given, otherwise the interactive shell.
func (s *Shell) Run(args ...string) {
	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			glog.Exit(err)
		}
		return
	}
	if evalOnly {
		glog.Exit("command expected")
	}
	waitSerial(s.Sim)
	s.Shell.Printf("%s", drainPeer(s.Sim))
	s.Shell.Run()
}

// drainPeer returns the bytes the remote end has received since the last call.
func drainPeer(sim *Sim) string {
	sim.HW.USART.Forward(sim.Peer)
	out := sim.Peer.String()
	sim.Peer.Reset()
	return out
}

// waitSerial lets the interrupt pump finish the current message.
func waitSerial(sim *Sim) {
	ctx, cancel := context.WithTimeout(sim.Ctx, time.Second)
	defer cancel()
	_ = sim.App.Flags().WaitNotBusy(ctx, scheduler.Serial)
}

func argInt(c *ishell.Context, i, def int) (int, error) {
	if len(c.Args) <= i {
		return def, nil
	}
	return strconv.Atoi(c.Args[i])
}

var (
	// PressCmd holds the button down.
	PressCmd = ishell.Cmd{
		Name: "press",
		Help: "hold the button",
		Func: func(c *ishell.Context) { SimFrom(c).HW.Button.Press() },
	}

	// ReleaseCmd lets the button go.
	ReleaseCmd = ishell.Cmd{
		Name: "release",
		Help: "release the button",
		Func: func(c *ishell.Context) { SimFrom(c).HW.Button.Release() },
	}

	// ClickCmd is a full gesture: press, tick, release, step.
	ClickCmd = ishell.Cmd{
		Name:    "click",
		Aliases: []string{"c"},
		Help:    "press, tick, release and step",
		Func: func(c *ishell.Context) {
			sim := SimFrom(c)
			waitSerial(sim)
			sim.HW.Button.Press()
			sim.App.Scheduler().Tick()
			sim.HW.Button.Release()
			step(c, sim)
		},
	}

	// TickCmd fires the timer tick.
	TickCmd = ishell.Cmd{
		Name: "tick",
		Help: "[N] fire N timer ticks",
		Func: func(c *ishell.Context) {
			n, err := argInt(c, 0, 1)
			if err != nil {
				c.Err(err)
				return
			}
			sim := SimFrom(c)
			for i := 0; i < n; i++ {
				sim.App.Scheduler().Tick()
			}
			c.Printf("flags %#x\n", sim.App.Flags().Word())
		},
	}

	// StepCmd runs one main-loop iteration.
	StepCmd = ishell.Cmd{
		Name:    "step",
		Aliases: []string{"s"},
		Help:    "run one main-loop iteration",
		Func:    func(c *ishell.Context) { step(c, SimFrom(c)) },
	}

	// AutoCmd runs the tick and main loop in the background.
	AutoCmd = ishell.Cmd{
		Name: "auto",
		Help: "on|off run the scheduler in the background",
		Func: func(c *ishell.Context) {
			sim := SimFrom(c)
			on := len(c.Args) == 0 || c.Args[0] == "on"
			if sim.stopAuto != nil {
				sim.stopAuto()
				sim.stopAuto = nil
			}
			if !on {
				return
			}
			ctx, cancel := context.WithCancel(sim.Ctx)
			sim.stopAuto = cancel
			go sim.App.Scheduler().Run(ctx, sim.Cfg.TickPeriod(), sim.Cfg.Idle())
			c.Printf("ticking every %s\n", sim.Cfg.TickPeriod())
		},
	}

	// RangeCmd sets the next distance.
	RangeCmd = ishell.Cmd{
		Name: "range",
		Help: "MM set the next distance",
		Func: func(c *ishell.Context) {
			mm, err := argInt(c, 0, -1)
			if err != nil || mm < 0 || mm > 0xFFFF {
				c.Err(fmt.Errorf("range: need 0..65535 mm"))
				return
			}
			SimFrom(c).HW.Ranger.SetDistance(uint16(mm))
		},
	}

	// AccelCmd sets the next Z sample.
	AccelCmd = ishell.Cmd{
		Name: "accel",
		Help: "RAW set the next Z-axis sample (16393 = 1 g)",
		Func: func(c *ishell.Context) {
			raw, err := argInt(c, 0, 16393)
			if err != nil || raw < -32768 || raw > 32767 {
				c.Err(fmt.Errorf("accel: need a 16-bit sample"))
				return
			}
			SimFrom(c).HW.Accel.SetAccelZ(int16(raw))
		},
	}

	// InjectCmd queues bytes on the USART receive side.
	InjectCmd = ishell.Cmd{
		Name: "inject",
		Help: "TEXT queue TEXT followed by CRLF on the serial receive line",
		Func: func(c *ishell.Context) {
			sim := SimFrom(c)
			sim.HW.USART.Inject([]byte(strings.Join(c.Args, " ") + "\r\n")...)
		},
	}

	// PeerCmd prints what the remote end has received.
	PeerCmd = ishell.Cmd{
		Name:    "peer",
		Aliases: []string{"p"},
		Help:    "print bytes received by the remote end",
		Func: func(c *ishell.Context) {
			sim := SimFrom(c)
			waitSerial(sim)
			c.Printf("%s", drainPeer(sim))
		},
	}

	// StatusCmd queries the application over the bus.
	StatusCmd = ishell.Cmd{
		Name: "status",
		Help: "print scheduler flags and serial counters",
		Func: func(c *ishell.Context) {
			sim := SimFrom(c)
			ctx, cancel := context.WithTimeout(sim.Ctx, time.Second)
			defer cancel()
			reply, err := sim.Conn.RequestWait(ctx, sim.Conn.NewMessage(app.TopicStatusGet, nil, false))
			if err != nil {
				c.Err(err)
				return
			}
			st, _ := reply.Payload.(types.Status)
			out, _ := json.Marshal(st)
			c.Println(string(out))
			d := sim.App.Digits()
			c.Printf("display %d%d%d\n", d[2], d[1], d[0])
		},
	}
)

func step(c *ishell.Context, sim *Sim) {
	ctx, cancel := context.WithTimeout(sim.Ctx, 2*time.Second)
	defer cancel()
	if err := sim.App.Scheduler().Step(ctx); err != nil {
		c.Err(err)
	}
	waitSerial(sim)
	c.Printf("%s", drainPeer(sim))
}
