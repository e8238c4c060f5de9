// cmd/rtm-admin/main.go
//
// rtm-admin seeds and repairs the dispatcher's shared state in etcd: resource
// ownership, escalation cases and audience membership. It talks to the same
// keys the server reads, so changes are visible to running nodes immediately.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"rtm-dispatcher/internal/config"
	"rtm-dispatcher/internal/domain"
	"rtm-dispatcher/internal/infra/etcd"
)

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: rtm-admin <command> [flags]

Commands:
  assign-owner     -resource <id> -owner <identity>
  seed-case        -id <id> -severity <low|medium|high|critical>
  audience-add     -filter <name> -member <id>
  audience-remove  -filter <name> -member <id>`)
	os.Exit(2)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	client, err := etcd.NewClient(cfg.EtcdEndpoints, cfg.EtcdTimeout)
	if err != nil {
		log.Fatalf("Failed to create etcd client: %v", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch os.Args[1] {
	case "assign-owner":
		fs := flag.NewFlagSet("assign-owner", flag.ExitOnError)
		resource := fs.String("resource", "", "resource ID")
		owner := fs.String("owner", "", "owner identity")
		fs.Parse(os.Args[2:])
		if *resource == "" || *owner == "" {
			fs.Usage()
			os.Exit(2)
		}
		repo := etcd.NewEtcdOwnershipRepository(client, logger)
		if err := repo.Assign(ctx, *resource, *owner); err != nil {
			log.Fatalf("Failed to assign owner: %v", err)
		}
		fmt.Printf("resource %s assigned to %s\n", *resource, *owner)

	case "seed-case":
		fs := flag.NewFlagSet("seed-case", flag.ExitOnError)
		id := fs.String("id", "", "case ID")
		severity := fs.String("severity", string(domain.SeverityLow), "initial severity")
		fs.Parse(os.Args[2:])
		sev, err := domain.ParseSeverity(*severity)
		if err != nil {
			log.Fatalf("Invalid severity: %v", err)
		}
		repo := etcd.NewEtcdCaseRepository(client, logger)
		c := &domain.Case{ID: *id, Severity: sev, UpdatedAt: time.Now()}
		if err := repo.Save(ctx, c); err != nil {
			log.Fatalf("Failed to seed case: %v", err)
		}
		fmt.Printf("case %s created at severity %s\n", c.ID, c.Severity)

	case "audience-add":
		filter, member := audienceFlags("audience-add")
		dir := etcd.NewAudienceDirectory(client, logger)
		if err := dir.AddMember(ctx, filter, member); err != nil {
			log.Fatalf("Failed to add audience member: %v", err)
		}
		fmt.Printf("member %s added to audience %s\n", member, filter)

	case "audience-remove":
		filter, member := audienceFlags("audience-remove")
		dir := etcd.NewAudienceDirectory(client, logger)
		if err := dir.RemoveMember(ctx, filter, member); err != nil {
			log.Fatalf("Failed to remove audience member: %v", err)
		}
		fmt.Printf("member %s removed from audience %s\n", member, filter)

	default:
		usage()
	}
}

func audienceFlags(name string) (filter, member string) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	f := fs.String("filter", "", "audience filter name")
	m := fs.String("member", "", "member ID")
	fs.Parse(os.Args[2:])
	if *f == "" || *m == "" {
		fs.Usage()
		os.Exit(2)
	}
	return *f, *m
}
