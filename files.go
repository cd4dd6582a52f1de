package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/objectstorage-go/internal/swift"
)

const listingTimeFormat = "2006-01-02T15:04:05Z"

func newLsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ls [container[/prefix]]",
		Short: "List containers, or objects in a container",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLs,
	}

	cmd.Flags().BoolP("recursive", "r", false, "list every object below the prefix instead of one level")
	cmd.Flags().Int("limit", 0, "maximum number of entries (0 = server default)")
	cmd.Flags().String("marker", "", "list entries after this name")

	return cmd
}

func newStatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stat [container[/object]]",
		Short: "Display account, container or object metadata",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runStat,
	}
}

func newGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <container/object> [local-path]",
		Short: "Download an object",
		Long: `Download an object to a local file. Interrupted downloads leave a
.partial file that the next run resumes with a range request.

With --offset or --size only that byte range is fetched. A negative --size
without --offset fetches the last bytes of the object.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: runGet,
	}

	cmd.Flags().Int64("offset", 0, "first byte to fetch")
	cmd.Flags().Int64("size", 0, "number of bytes to fetch")

	return cmd
}

func newCatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cat <container/object>",
		Short: "Stream an object to stdout",
		Args:  cobra.ExactArgs(1),
		RunE:  runCat,
	}

	cmd.Flags().String("chunk-size", "", "read size per chunk (e.g. 64KiB)")

	return cmd
}

func newPutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "put <local-path> <container[/name]>",
		Short: "Upload a file or a directory tree",
		Long: `Upload a local file or directory. For a file, a target ending in "/" or
naming only a container keeps the local file name. A directory is uploaded
below the target prefix with directory marker objects for its
sub-directories.`,
		Args: cobra.ExactArgs(2),
		RunE: runPut,
	}
}

func newMkdirCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mkdir <container[/dir]>",
		Short: "Create a container or a directory marker",
		Args:  cobra.ExactArgs(1),
		RunE:  runMkdir,
	}

	cmd.Flags().String("read-acl", "", "container read ACL (e.g. .r:*)")
	cmd.Flags().String("write-acl", "", "container write ACL")
	cmd.Flags().Bool("cdn", false, "make the container public and serve it through the CDN")
	cmd.Flags().Duration("cdn-ttl", swift.DefaultCDNTTL, "edge cache lifetime with --cdn")

	return cmd
}

func newRmCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rm <container[/object]>",
		Short: "Delete an object or a container",
		Long: `Delete an object or a container. A container must be empty unless
--recursive (-r) is given, in which case every object in it is deleted
first. For a directory marker, --recursive also deletes everything below it.`,
		Args: cobra.ExactArgs(1),
		RunE: runRm,
	}

	cmd.Flags().BoolP("recursive", "r", false, "delete contents first")

	return cmd
}

func newCpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cp <container/object> <container[/object]>",
		Short: "Copy an object on the server",
		Args:  cobra.ExactArgs(2),
		RunE:  runCp,
	}
}

func newMvCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mv <container/object> <container[/object]>",
		Short: "Move an object (server-side copy, then delete)",
		Args:  cobra.ExactArgs(2),
		RunE:  runMv,
	}
}

func newMetaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "meta [container[/object]] [key=value...]",
		Short: "Show or set custom metadata",
		Long: `Without key=value pairs, print the custom metadata of the account,
container or object. With pairs, set them. An empty value removes the key.`,
		RunE: runMeta,
	}
}

// splitRemote splits "container/a/b" into its container and object name.
func splitRemote(arg string) (container, object string) {
	return swift.SplitObjectPath(arg)
}

// objectFromArg resolves an argument that must name an object.
func objectFromArg(ss *StorageSession, arg string) (*swift.Object, error) {
	container, name := splitRemote(arg)
	if container == "" || name == "" || strings.HasSuffix(name, "/") {
		return nil, fmt.Errorf("%q does not name an object (want container/object)", arg)
	}

	return ss.Account.Container(container).Object(name), nil
}

// copyTarget resolves the destination of cp/mv. A destination that is only
// a container or ends in "/" keeps the source's base name.
func copyTarget(ss *StorageSession, src *swift.Object, arg string) (*swift.Object, error) {
	container, name := splitRemote(arg)
	if container == "" {
		return nil, fmt.Errorf("%q does not name a container", arg)
	}

	if name == "" || strings.HasSuffix(name, "/") {
		name += path.Base(src.Name())
	}

	return ss.Account.Container(container).Object(name), nil
}

// parseMetaArgs parses key=value pairs.
func parseMetaArgs(args []string) (map[string]string, error) {
	meta := make(map[string]string, len(args))

	for _, a := range args {
		k, v, ok := strings.Cut(a, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid metadata %q (want key=value)", a)
		}

		meta[k] = v
	}

	return meta, nil
}

// --- ls ---

// lsJSONItem is the JSON output schema for a single object in ls output.
type lsJSONItem struct {
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	IsDir       bool   `json:"is_dir"`
	ContentType string `json:"content_type,omitempty"`
	ETag        string `json:"etag,omitempty"`
	ModifiedAt  string `json:"modified_at,omitempty"`
}

// lsJSONContainer is the JSON output schema for a container in ls output.
type lsJSONContainer struct {
	Name    string `json:"name"`
	Objects int64  `json:"objects"`
	Bytes   int64  `json:"bytes"`
}

func runLs(cmd *cobra.Command, args []string) error {
	ss, err := newStorageSession()
	if err != nil {
		return err
	}

	recursive, _ := cmd.Flags().GetBool("recursive")
	limit, _ := cmd.Flags().GetInt("limit")
	marker, _ := cmd.Flags().GetString("marker")

	opts := swift.ListOptions{Limit: limit, Marker: marker}

	if len(args) == 0 || strings.Trim(args[0], "/") == "" {
		containers, err := ss.Account.Containers(cmd.Context(), opts)
		if err != nil {
			return fmt.Errorf("listing containers: %w", err)
		}

		return printContainers(cmd.OutOrStdout(), containers)
	}

	container, prefix := splitRemote(args[0])
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	opts.Prefix = prefix
	if !recursive {
		opts.Delimiter = "/"
	}

	ss.Logger.Debug("ls", "container", container, "prefix", prefix, "recursive", recursive)

	objects, err := ss.Account.Container(container).Objects(cmd.Context(), opts)
	if err != nil {
		return fmt.Errorf("listing %q: %w", args[0], err)
	}

	return printObjects(cmd.OutOrStdout(), objects, prefix)
}

func printContainers(w io.Writer, containers []*swift.Container) error {
	if flagJSON {
		out := make([]lsJSONContainer, 0, len(containers))
		for _, c := range containers {
			out = append(out, lsJSONContainer{Name: c.Name(), Objects: c.Info().ObjectCount, Bytes: c.Info().BytesUsed})
		}

		return printJSON(w, out)
	}

	rows := make([][]string, 0, len(containers))
	for _, c := range containers {
		info := c.Info()
		rows = append(rows, []string{c.Name(), fmt.Sprint(info.ObjectCount), formatSize(info.BytesUsed)})
	}

	printTable(w, []string{"NAME", "OBJECTS", "SIZE"}, rows)

	return nil
}

func printObjects(w io.Writer, objects []*swift.Object, prefix string) error {
	// Directories first, then alphabetical.
	sort.SliceStable(objects, func(i, j int) bool {
		if objects[i].IsDir() != objects[j].IsDir() {
			return objects[i].IsDir()
		}

		return objects[i].Name() < objects[j].Name()
	})

	if flagJSON {
		out := make([]lsJSONItem, 0, len(objects))

		for _, o := range objects {
			info := o.Info()
			item := lsJSONItem{
				Name:        o.Name(),
				Size:        info.Size,
				IsDir:       o.IsDir(),
				ContentType: info.ContentType,
				ETag:        info.ETag,
			}

			if !info.LastModified.IsZero() {
				item.ModifiedAt = info.LastModified.UTC().Format(listingTimeFormat)
			}

			out = append(out, item)
		}

		return printJSON(w, out)
	}

	rows := make([][]string, 0, len(objects))

	for _, o := range objects {
		info := o.Info()

		name := strings.TrimPrefix(o.Name(), prefix)
		if o.IsDir() {
			name += "/"
		}

		rows = append(rows, []string{name, formatSize(info.Size), formatTime(info.LastModified)})
	}

	printTable(w, []string{"NAME", "SIZE", "MODIFIED"}, rows)

	return nil
}

// --- stat ---

// statOutput is the JSON output schema for stat. Fields that do not apply
// to the node kind are omitted.
type statOutput struct {
	Kind           string            `json:"kind"`
	Path           string            `json:"path"`
	URL            string            `json:"url"`
	Containers     *int64            `json:"containers,omitempty"`
	Objects        *int64            `json:"objects,omitempty"`
	Bytes          *int64            `json:"bytes,omitempty"`
	ReadACL        string            `json:"read_acl,omitempty"`
	WriteACL       string            `json:"write_acl,omitempty"`
	Size           *int64            `json:"size,omitempty"`
	ContentType    string            `json:"content_type,omitempty"`
	ETag           string            `json:"etag,omitempty"`
	LastModified   string            `json:"last_modified,omitempty"`
	Manifest       string            `json:"manifest,omitempty"`
	IsDir          bool              `json:"is_dir"`
	CustomMetadata map[string]string `json:"meta,omitempty"`
}

func runStat(cmd *cobra.Command, args []string) error {
	ss, err := newStorageSession()
	if err != nil {
		return err
	}

	arg := ""
	if len(args) > 0 {
		arg = args[0]
	}

	node := nodeFromArg(ss, arg)
	ctx := cmd.Context()

	if err := node.Load(ctx); err != nil {
		return fmt.Errorf("stat %q: %w", arg, err)
	}

	u, err := node.URL(ctx)
	if err != nil {
		return err
	}

	out := statOutput{Path: node.Path(), URL: u, IsDir: node.IsDir()}

	switch n := node.(type) {
	case *swift.Account:
		info := n.Info()
		out.Kind = "account"
		out.Containers, out.Objects, out.Bytes = &info.ContainerCount, &info.ObjectCount, &info.BytesUsed
		out.CustomMetadata = info.Meta
	case *swift.Container:
		info := n.Info()
		out.Kind = "container"
		out.Objects, out.Bytes = &info.ObjectCount, &info.BytesUsed
		out.ReadACL, out.WriteACL = info.ReadACL, info.WriteACL
		out.CustomMetadata = info.Meta
	case *swift.Object:
		info := n.Info()
		out.Kind = "object"
		out.Size = &info.Size
		out.ContentType, out.ETag, out.Manifest = info.ContentType, info.ETag, info.Manifest
		out.CustomMetadata = info.Meta

		if !info.LastModified.IsZero() {
			out.LastModified = info.LastModified.UTC().Format(listingTimeFormat)
		}
	}

	if flagJSON {
		return printJSON(cmd.OutOrStdout(), out)
	}

	printStatText(cmd.OutOrStdout(), &out)

	return nil
}

// nodeFromArg maps "" to the account, "c" to a container and "c/o" to an
// object.
func nodeFromArg(ss *StorageSession, arg string) swift.Node {
	container, name := splitRemote(arg)

	switch {
	case container == "":
		return ss.Account
	case strings.Trim(name, "/") == "":
		return ss.Account.Container(container)
	default:
		return ss.Account.Container(container).Object(strings.TrimSuffix(name, "/"))
	}
}

func printStatText(w io.Writer, out *statOutput) {
	field := func(label, value string) {
		if value != "" {
			fmt.Fprintf(w, "%-14s %s\n", label+":", value)
		}
	}

	field("Kind", out.Kind)
	field("Path", out.Path)
	field("URL", out.URL)

	if out.Containers != nil {
		field("Containers", fmt.Sprint(*out.Containers))
	}

	if out.Objects != nil {
		field("Objects", fmt.Sprint(*out.Objects))
	}

	if out.Bytes != nil {
		field("Bytes used", formatSize(*out.Bytes))
	}

	if out.Size != nil {
		field("Size", fmt.Sprintf("%s (%d bytes)", formatSize(*out.Size), *out.Size))
	}

	field("Read ACL", out.ReadACL)
	field("Write ACL", out.WriteACL)
	field("Content type", out.ContentType)
	field("ETag", out.ETag)
	field("Modified", out.LastModified)
	field("Manifest", out.Manifest)

	keys := make([]string, 0, len(out.CustomMetadata))
	for k := range out.CustomMetadata {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	for _, k := range keys {
		field("Meta "+k, out.CustomMetadata[k])
	}
}

// --- get / cat ---

func runGet(cmd *cobra.Command, args []string) error {
	ss, err := newStorageSession()
	if err != nil {
		return err
	}

	obj, err := objectFromArg(ss, args[0])
	if err != nil {
		return err
	}

	localPath := path.Base(obj.Name())
	if len(args) > 1 {
		localPath = args[1]
	}

	if cmd.Flags().Changed("offset") || cmd.Flags().Changed("size") {
		return getRange(cmd, obj, localPath)
	}

	ss.Logger.Debug("get", "object", obj.Path(), "local_path", localPath)

	res, err := ss.Transfer.DownloadToFile(cmd.Context(), obj, localPath)
	if err != nil {
		if _, statErr := os.Stat(localPath + ".partial"); statErr == nil {
			statusf("Partial download saved: %s.partial\n", localPath)
			statusf("Re-run the same command to resume.\n")
		}

		return err
	}

	msg := "Downloaded %s (%s)\n"
	if res.Resumed {
		msg = "Downloaded %s (%s, resumed)\n"
	}

	statusf(msg, localPath, formatSize(res.Size))

	return nil
}

// byteRangeFromFlags maps --offset/--size to a ByteRange.
func byteRangeFromFlags(offset int64, size int64, offsetSet, sizeSet bool) (swift.ByteRange, error) {
	switch {
	case offsetSet && sizeSet:
		return swift.RangeSpan(offset, size), nil
	case offsetSet:
		return swift.RangeFrom(offset), nil
	case sizeSet:
		return swift.RangeSize(size), nil
	default:
		return swift.ByteRange{}, errors.New("no range given")
	}
}

func getRange(cmd *cobra.Command, obj *swift.Object, localPath string) error {
	offset, _ := cmd.Flags().GetInt64("offset")
	size, _ := cmd.Flags().GetInt64("size")

	r, err := byteRangeFromFlags(offset, size, cmd.Flags().Changed("offset"), cmd.Flags().Changed("size"))
	if err != nil {
		return err
	}

	data, err := obj.Read(cmd.Context(), r)
	if err != nil {
		return fmt.Errorf("reading %s %s: %w", obj.Path(), r, err)
	}

	if localPath == "-" {
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}

	if err := os.WriteFile(localPath, data, 0o600); err != nil { //nolint:mnd // owner-only file perms
		return fmt.Errorf("writing %s: %w", localPath, err)
	}

	statusf("Wrote %s (%s)\n", localPath, formatSize(int64(len(data))))

	return nil
}

func runCat(cmd *cobra.Command, args []string) error {
	ss, err := newStorageSession()
	if err != nil {
		return err
	}

	obj, err := objectFromArg(ss, args[0])
	if err != nil {
		return err
	}

	it, err := obj.Download(cmd.Context(), swift.ByteRange{}, resolvedCfg.ChunkBytes())
	if err != nil {
		return err
	}
	defer it.Close()

	out := cmd.OutOrStdout()

	for chunk, err := range it.All() {
		if err != nil {
			return fmt.Errorf("reading %s: %w", obj.Path(), err)
		}

		if _, err := out.Write(chunk); err != nil {
			return err
		}
	}

	return nil
}

// --- put ---

func runPut(cmd *cobra.Command, args []string) error {
	localPath, target := args[0], args[1]

	fi, err := os.Stat(localPath)
	if err != nil {
		return fmt.Errorf("stating local path: %w", err)
	}

	container, name := splitRemote(target)
	if container == "" {
		return fmt.Errorf("%q does not name a container", target)
	}

	ss, err := newStorageSession()
	if err != nil {
		return err
	}

	c := ss.Account.Container(container)

	if fi.IsDir() {
		report, err := ss.Transfer.UploadDirectory(cmd.Context(), c, name, localPath)
		if err != nil {
			return err
		}

		statusf("Uploaded %d files (%s) and %d directories to %s\n",
			report.Files, formatSize(report.Bytes), report.Directories, target)

		return nil
	}

	if name == "" || strings.HasSuffix(name, "/") {
		name += filepath.Base(localPath)
	}

	res, err := ss.Transfer.UploadFile(cmd.Context(), c, name, localPath)
	if err != nil {
		return err
	}

	statusf("Uploaded %s/%s (%s, md5 %s)\n", container, name, formatSize(res.Size), res.Checksum)

	return nil
}

// --- mkdir / rm ---

func runMkdir(cmd *cobra.Command, args []string) error {
	ss, err := newStorageSession()
	if err != nil {
		return err
	}

	container, name := splitRemote(args[0])
	name = strings.Trim(name, "/")

	if container == "" {
		return fmt.Errorf("%q does not name a container", args[0])
	}

	if name != "" {
		if err := ss.Account.Container(container).Object(name).MakeDir(cmd.Context()); err != nil {
			return err
		}

		statusf("Created directory %s/%s\n", container, name)

		return nil
	}

	readACL, _ := cmd.Flags().GetString("read-acl")
	writeACL, _ := cmd.Flags().GetString("write-acl")

	if err := ss.Account.Container(container).Create(cmd.Context(), swift.ContainerOptions{
		ReadACL:  readACL,
		WriteACL: writeACL,
	}); err != nil {
		return err
	}

	statusf("Created container %s\n", container)

	if cdn, _ := cmd.Flags().GetBool("cdn"); cdn {
		return enableContainerCDN(cmd, ss.Account.Container(container))
	}

	return nil
}

// enableContainerCDN turns on CDN delivery for c and prints its public URLs.
func enableContainerCDN(cmd *cobra.Command, c *swift.Container) error {
	ttl, _ := cmd.Flags().GetDuration("cdn-ttl")

	if err := c.EnableCDN(cmd.Context(), ttl); err != nil {
		return fmt.Errorf("enabling CDN for %s: %w", c.Name(), err)
	}

	urls, err := c.CDNURLs(cmd.Context())
	if err != nil {
		return fmt.Errorf("reading CDN URLs for %s: %w", c.Name(), err)
	}

	if flagJSON {
		return printJSON(cmd.OutOrStdout(), urls)
	}

	statusf("CDN enabled for %s\n", c.Name())

	for _, u := range []string{urls.URL, urls.SSLURL} {
		if u != "" {
			fmt.Fprintln(cmd.OutOrStdout(), u)
		}
	}

	return nil
}

func runRm(cmd *cobra.Command, args []string) error {
	ss, err := newStorageSession()
	if err != nil {
		return err
	}

	recursive, _ := cmd.Flags().GetBool("recursive")
	ctx := cmd.Context()

	container, name := splitRemote(args[0])
	name = strings.Trim(name, "/")

	if container == "" {
		return fmt.Errorf("%q does not name a container", args[0])
	}

	c := ss.Account.Container(container)

	if name == "" {
		if recursive {
			n, err := deleteBelow(cmd, c, "")
			if err != nil {
				return err
			}

			ss.Logger.Debug("emptied container", "container", container, "objects", n)
		}

		if err := c.Delete(ctx); err != nil {
			if errors.Is(err, swift.ErrContainerNotEmpty) {
				return fmt.Errorf("container %q is not empty; use --recursive to delete its objects", container)
			}

			return err
		}

		statusf("Deleted container %s\n", container)

		return nil
	}

	if recursive {
		if _, err := deleteBelow(cmd, c, name+"/"); err != nil {
			return err
		}
	}

	if err := c.Object(name).Delete(ctx); err != nil {
		// The marker may not exist when only the contents were there.
		if !recursive || !errors.Is(err, swift.ErrNotFound) {
			return err
		}
	}

	statusf("Deleted %s/%s\n", container, name)

	return nil
}

// deleteBelow deletes every object whose name starts with prefix, one
// listing page at a time.
func deleteBelow(cmd *cobra.Command, c *swift.Container, prefix string) (int, error) {
	ctx := cmd.Context()
	deleted := 0
	marker := ""

	for {
		objects, err := c.Objects(ctx, swift.ListOptions{Prefix: prefix, Marker: marker})
		if err != nil {
			return deleted, fmt.Errorf("listing %s: %w", c.Name(), err)
		}

		if len(objects) == 0 {
			return deleted, nil
		}

		for _, o := range objects {
			if err := o.Delete(ctx); err != nil && !errors.Is(err, swift.ErrNotFound) {
				return deleted, err
			}

			deleted++
		}

		marker = objects[len(objects)-1].Name()
	}
}

// --- cp / mv ---

func runCp(cmd *cobra.Command, args []string) error {
	ss, err := newStorageSession()
	if err != nil {
		return err
	}

	src, err := objectFromArg(ss, args[0])
	if err != nil {
		return err
	}

	dst, err := copyTarget(ss, src, args[1])
	if err != nil {
		return err
	}

	if err := dst.CopyFrom(cmd.Context(), src); err != nil {
		return err
	}

	statusf("Copied %s to %s\n", src.Path(), dst.Path())

	return nil
}

func runMv(cmd *cobra.Command, args []string) error {
	ss, err := newStorageSession()
	if err != nil {
		return err
	}

	src, err := objectFromArg(ss, args[0])
	if err != nil {
		return err
	}

	dst, err := copyTarget(ss, src, args[1])
	if err != nil {
		return err
	}

	if err := src.Rename(cmd.Context(), dst); err != nil {
		return err
	}

	statusf("Moved %s to %s\n", src.Path(), dst.Path())

	return nil
}

// --- meta ---

// metadataSetter is implemented by every node that accepts custom metadata.
type metadataSetter interface {
	SetMetadata(ctx context.Context, meta map[string]string) error
}

func runMeta(cmd *cobra.Command, args []string) error {
	ss, err := newStorageSession()
	if err != nil {
		return err
	}

	target := ""
	pairs := args

	if len(args) > 0 && !strings.Contains(args[0], "=") {
		target, pairs = args[0], args[1:]
	}

	node := nodeFromArg(ss, target)

	if len(pairs) == 0 {
		return printMeta(cmd, node)
	}

	meta, err := parseMetaArgs(pairs)
	if err != nil {
		return err
	}

	setter, ok := node.(metadataSetter)
	if !ok {
		return fmt.Errorf("%q does not accept metadata", target)
	}

	if err := setter.SetMetadata(cmd.Context(), meta); err != nil {
		return err
	}

	statusf("Updated %d metadata keys\n", len(meta))

	return nil
}

func printMeta(cmd *cobra.Command, node swift.Node) error {
	if err := node.Load(cmd.Context()); err != nil {
		return err
	}

	var meta map[string]string

	switch n := node.(type) {
	case *swift.Account:
		meta = n.Info().Meta
	case *swift.Container:
		meta = n.Info().Meta
	case *swift.Object:
		meta = n.Info().Meta
	}

	if flagJSON {
		if meta == nil {
			meta = map[string]string{}
		}

		return printJSON(cmd.OutOrStdout(), meta)
	}

	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	for _, k := range keys {
		fmt.Fprintf(cmd.OutOrStdout(), "%s=%s\n", k, meta[k])
	}

	return nil
}
