package preview

import (
	"strings"
)

const shimsSource = `
// Globals expected by legacy component libraries when run directly in the browser
import PropTypes from 'prop-types';

window.PropTypes = PropTypes;
`

const routesSource = "\n"

const globalCSSSource = `
body {
  -webkit-font-smoothing: antialiased;
}
`

const indexHTMLSource = `<div id="root"></div>`

const indexLessSource = `
@import "~@alifd/next/dist/next.css";
@import '~@alifd/pro-layout/dist/AlifdProLayout.css';
`

// htmlScriptSource copies the HTML shell out of the sandbox's BrowserFS into the
// riddle container and re-runs any script tags it carries.
const htmlScriptSource = `function runScript(script){
  const newScript = document.createElement('script');
  newScript.innerHTML = script.innerHTML;
  const src = script.getAttribute('src');
  if (src) newScript.setAttribute('src', src);

  document.head.appendChild(newScript);
  document.head.removeChild(newScript);
}

function setHTMLWithScript(container, rawHTML){
  container.innerHTML = rawHTML;
  const scripts = container.querySelectorAll('script');
  for (let script of scripts) {
    runScript(script);
  }
} var html = window.BrowserFS.BFSRequire('fs').readFileSync('/~/src/index.html').toString();setHTMLWithScript(document.getElementById("riddleContainer"), html);`

// entrySource renders the page component at pagePath into #root. An empty
// pagePath mounts nothing.
func entrySource(pagePath string) string {
	var sb strings.Builder

	sb.WriteString(`
import './shims';
import './global.css';

import React from 'react';
import ReactDOM from 'react-dom';
`)

	if pagePath == "" {
		sb.WriteString(`
ReactDOM.render(null, document.getElementById('root'));
`)
		return sb.String()
	}

	sb.WriteString(`
import Page from '`)
	sb.WriteString(pagePath)
	sb.WriteString(`';

ReactDOM.render(<Page/>, document.getElementById('root'));
`)

	return sb.String()
}
