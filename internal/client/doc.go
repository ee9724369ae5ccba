/*
Package client is the terminal side of the broker: a tab manager where every
tab owns one connection and therefore one remote shell.

# Features

  - Ordered tabs with at most one active
  - Size negotiation on activation and container resize
  - Idempotent disposal with an inline notice for unexpected disconnects
  - Window titles taken from OSC 0/2 sequences in the output
  - A ScreenSurface that shares the local terminal between tabs

# Example

	dialer := &client.WSDialer{URL: "ws://127.0.0.1:3001/terminal"}
	mgr := client.NewManager(dialer, func(string) client.Surface {
		return client.NewScreenSurface(os.Stdout, client.DefaultBacklogSize)
	})
	tab, err := mgr.New(ctx)
	if err != nil {
		return err
	}
	_ = tab.Send([]byte("ls\n"))
	defer mgr.Shutdown()
*/
package client
