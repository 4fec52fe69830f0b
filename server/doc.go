// Package server provides the MCP server implementation.
//
// A Server owns a transport and a protocol handler and dispatches the
// standard MCP methods (initialize, tools, resources, prompts, logging)
// to handlers registered through fluent builders:
//
//	srv := server.New(server.Info{
//	    Name:    "example",
//	    Version: "1.0.0",
//	    Capabilities: server.Capabilities{Tools: true},
//	}, tr)
//
//	srv.Tool("echo").
//	    Description("Echoes its arguments back").
//	    Handler(func(ctx context.Context, args map[string]any) (map[string]any, error) {
//	        return map[string]any{"echo": args}, nil
//	    })
//
//	if err := srv.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer srv.Stop()
//
// Middleware installed with Use wraps every request handler:
//
//	srv.Use(middleware.Recover(), middleware.Logging(logger))
package server
