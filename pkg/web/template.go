package web

const indexTemplate = `<!doctype html>
<html lang="en">
<head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <title>CBCT Inventory Scanner</title>
    <style>
        body { font-family: system-ui, sans-serif; background: #f7f7f7; margin: 0; padding: 0; }
        header { background: #1f4b99; color: white; padding: 1.5rem; }
        main { max-width: 960px; margin: 2rem auto; background: white; padding: 2rem; border-radius: 12px; box-shadow: 0 6px 16px rgba(31,75,153,0.15); }
        h1 { margin-top: 0; }
        form { display: grid; gap: 1.2rem; }
        label { display: block; font-weight: 600; margin-bottom: 0.4rem; }
        input[type=text], textarea, select { width: 100%; padding: 0.6rem 0.8rem; border-radius: 8px; border: 1px solid #ccd6eb; font-size: 1rem; }
        .checkbox { display: flex; align-items: center; gap: 0.5rem; }
        .actions { display: flex; gap: 0.75rem; align-items: center; }
        button, .button-link { background: #1f4b99; color: white; border: none; padding: 0.75rem 1.5rem; border-radius: 999px; font-size: 1rem; cursor: pointer; font-weight: 600; text-decoration: none; display: inline-block; }
        button:hover, .button-link:hover { background: #163a76; }
        .message { padding: 0.75rem 1rem; border-radius: 8px; margin-bottom: 1rem; }
        .message.error { background: #fce8e6; color: #6b1a12; border: 1px solid #f7b5ae; }
        .message.success { background: #e6f4ea; color: #0b5f1a; border: 1px solid #a1d6a3; }
        table { width: 100%; border-collapse: collapse; margin-top: 1.5rem; }
        th, td { border-bottom: 1px solid #e0e6f0; padding: 0.75rem; text-align: left; }
        th { background: #f1f5fb; }
        pre { background: #0f172a; color: #e2e8f0; padding: 1rem; border-radius: 8px; overflow-x: auto; }
    </style>
</head>
<body>
    <header>
        <h1>CBCT Inventory Scanner</h1>
        <p>Discover CBCT study folders and review their metadata before bulk analysis.</p>
    </header>
    <main>
        {{range .Messages}}
            <div class="message {{.Category}}">{{.Text}}</div>
        {{end}}
        <form method="post" action="/">
            <div>
                <label for="root">Scan root directory</label>
                <input type="text" id="root" name="root" required value="{{.State.Root}}" placeholder="/path/to/cbct/root">
            </div>
            <div>
                <label for="extensions">Image slice extensions</label>
                <textarea id="extensions" name="extensions" rows="2">{{.State.Extensions}}</textarea>
                <small>Separate multiple extensions with spaces or commas. Use leading dots, e.g. <code>.dcm .ima</code>.</small>
            </div>
            <div>
                <label for="phantom">Catphan phantom model</label>
                <select id="phantom" name="phantom">
                    {{$selected := .State.Phantom}}
                    {{range .PhantomOptions}}
                        <option value="{{.Value}}" {{if eq $selected .Value}}selected{{end}}>{{.Label}}</option>
                    {{end}}
                </select>
            </div>
            <div class="checkbox">
                <input type="checkbox" id="follow_symlinks" name="follow_symlinks" {{if .State.FollowSymlinks}}checked{{end}}>
                <label for="follow_symlinks">Follow symlinks during the scan</label>
            </div>
            <div class="actions">
                <button type="submit">Run inventory</button>
                {{if .Inventory}}
                    <a href="/download.json" class="button-link" download>Download JSON</a>
                {{end}}
            </div>
        </form>

        {{if .Inventory}}
            <section>
                <h2>Scan results</h2>
                <p><strong>Root:</strong> {{.Inventory.Root}}</p>
                <p><strong>Generated:</strong> {{.Inventory.GeneratedAt}}</p>
                <p><strong>Study count:</strong> {{.Inventory.StudyCount}}</p>
            </section>
            {{if .Inventory.Studies}}
                <table>
                    <thead>
                        <tr>
                            <th>Relative Path</th>
                            <th>File Count</th>
                            <th>Extensions</th>
                        </tr>
                    </thead>
                    <tbody>
                        {{range .Inventory.Studies}}
                            <tr>
                                <td><code>{{.RelativePath}}</code></td>
                                <td>{{.FileCount}}</td>
                                <td>{{range $i, $e := .Extensions}}{{if $i}}, {{end}}{{$e}}{{end}}</td>
                            </tr>
                        {{end}}
                    </tbody>
                </table>
            {{else}}
                <p>No studies were discovered. Try adjusting the extensions or verifying the directory.</p>
            {{end}}
            <details>
                <summary>Raw JSON</summary>
                <pre>{{.InventoryJSON}}</pre>
            </details>
        {{end}}
    </main>
</body>
</html>
`
