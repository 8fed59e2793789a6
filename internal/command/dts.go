package command

// apiDeclarations is the TypeScript declaration file written next to the
// user's scripts so editors can type-check and complete the refacTools API.
// It mirrors the capability surface installed by the execution sandbox.
const apiDeclarations = `// Type declarations for refactool scripts. Generated by 'refactool init'.
// Do not edit; this file is excluded from script discovery.

declare namespace RefacTools {
	interface RefactorConfig {
		name: string;
		description?: string;
		enabledWhen?: {
			hasSelection?: boolean;
			activeFileContains?: string;
			activeLanguageIs?: string | string[];
			expression?: string;
		};
		variants?: Record<string, string>;
		options?: Record<string, {
			label?: string;
			description?: string;
			default?: boolean;
			applicableVariants?: string | string[];
		}>;
	}

	interface Selection {
		text: string;
		language: string;
		start: number;
		end: number;
		editorId: string;
		replaceWith(text: string): void;
	}

	interface Editor {
		id: string;
		filepath: string;
		filename: string;
		language: string;
		extension: string;
		getContent(): string;
		setContent(text: string): void;
		replaceContent(text: string): void;
		insertContent(text: string, offset: number): void;
		getSelected(): Selection | null;
		format(): void;
		save(): void;
	}

	interface PickOption {
		label: string;
		value?: string;
		description?: string;
		picked?: boolean;
	}

	interface Prompt {
		text(message: string, defaultValue?: string): string | null;
		quickPick(opts: { title?: string; options: Array<string | PickOption>; default?: string }): string | null;
		multiQuickPick(opts: { title?: string; options: Array<string | PickOption>; default?: string }): string[] | null;
		dialog(message: string, opts?: { title?: string; buttons?: string[] }): string | null;
		waitTextSelection(message: string, buttonLabel: string): Selection | null;
	}

	interface Ide {
		getActiveEditor(): Editor;
		getEditor(id: string): Editor;
		openFile(path: string, beside?: boolean): Editor;
		newUnsavedFile(content: string, language: string): Editor;
		showInfoMessage(message: string): void;
		showWarningMessage(message: string): void;
		showErrorMessage(message: string): void;
		setGeneralProgress(message: string): void;
		showProgress<T>(message: string, fn: () => T): T;
	}

	interface HistoryRun {
		variant: string;
		values: Record<string, unknown>;
		get(key: string): unknown;
	}

	interface History {
		add(key: string, value: unknown): void;
		getLast(): HistoryRun | null;
		getAll(): Array<{ variant: string; values: Record<string, unknown> }>;
	}

	interface TempFile {
		path: string;
		update(content: string): void;
		getContent(): string;
		dispose(): void;
		openEditor(): Editor;
	}

	interface Fs {
		getWorkspacePath(): string;
		getPathRelativeToWorkspace(path: string): string;
		readFile(path: string): string;
		writeFile(path: string, content: string): void;
		createFile(path: string, content: string): void;
		deleteFile(path: string): void;
		moveFile(oldPath: string, newPath: string): void;
		renameFile(path: string, newName: string): void;
		fileExists(path: string): boolean;
		createFolder(path: string): void;
		deleteFolder(path: string): void;
		moveFolder(oldPath: string, newPath: string): void;
		renameFolder(path: string, newName: string): void;
		createMemPath(ext: string): string;
		createTempFile(ext: string, initialContent: string): TempFile;
		readDirectory(dir: string, opts?: { filesFilter?: string; includeFolders?: boolean; recursive?: boolean }): string[];
	}

	interface CompletionRequest {
		prompt?: string;
		system?: string;
		messages?: Array<{ role: string; content: string }>;
		maxTokens?: number;
		stop?: string[];
	}

	interface CompletionStream {
		next(): { value: string; done: boolean };
		cancel(): void;
	}

	interface Ai {
		complete(req: CompletionRequest): string;
		completeStream(req: CompletionRequest): CompletionStream;
	}

	interface DiffOptions {
		title?: string;
		ext?: string;
		original: string | Selection | { editor: Editor; offset: number };
		refactored: string | CompletionStream;
	}

	interface RefactorContext {
		variant: string;
		selectedOptions: string[];
		hasOption(id: string): boolean;
		activeEditor: Editor | null;
		prompt: Prompt;
		ide: Ide;
		history: History;
		fs: Fs;
		ai: Ai;
		showDiff(opts: DiffOptions): string | false;
		log(message: unknown): void;
		isCancelled(): boolean;
		forceCancel(): void;
		onCancel(fn: () => void): () => void;
	}
}

declare const refacTools: {
	config(cfg: RefacTools.RefactorConfig): void;
	runRefactor(fn: (ctx: RefacTools.RefactorContext) => void | Promise<void>): void;
};

declare function fetch(url: string, opts?: {
	method?: string;
	headers?: Record<string, string>;
	body?: string;
	timeout?: number;
}): {
	status: number;
	ok: boolean;
	statusText: string;
	url: string;
	headers: Record<string, string>;
	text(): string;
	json(): unknown;
};
`
